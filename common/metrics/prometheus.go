package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder against the default registry.
type PrometheusRecorder struct {
	httpRequests       *prometheus.CounterVec
	relayRequests      *prometheus.CounterVec
	relayTokens        *prometheus.CounterVec
	credentialPoolSize *prometheus.GaugeVec
	failovers          *prometheus.CounterVec
	tokenRefreshes     *prometheus.CounterVec
	tokenRefreshSecs   *prometheus.HistogramVec
	quotaUtilization   *prometheus.GaugeVec
	errors             *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the gateway's metric families and returns a
// Recorder backed by them.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaygate_http_requests_total",
			Help: "Inbound HTTP requests by path, method, and status.",
		}, []string{"path", "method", "status"}),
		relayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaygate_relay_requests_total",
			Help: "Upstream relay attempts by vendor, model, and outcome.",
		}, []string{"vendor", "model", "success"}),
		relayTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaygate_relay_tokens_total",
			Help: "Prompt/completion tokens relayed by vendor, model, and kind.",
		}, []string{"vendor", "model", "kind"}),
		credentialPoolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relaygate_credential_pool_size",
			Help: "Credential counts by vendor and state.",
		}, []string{"vendor", "state"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaygate_credential_failovers_total",
			Help: "Selector retries caused by a credential failure.",
		}, []string{"vendor", "reason"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaygate_token_refreshes_total",
			Help: "Token refresh attempts by vendor and outcome.",
		}, []string{"vendor", "success"}),
		tokenRefreshSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relaygate_token_refresh_duration_seconds",
			Help:    "Token refresh latency by vendor.",
			Buckets: prometheus.DefBuckets,
		}, []string{"vendor"}),
		quotaUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relaygate_quota_utilization_ratio",
			Help: "Fractional quota utilization per credential.",
		}, []string{"vendor", "credential_id"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaygate_errors_total",
			Help: "Classified gateway errors by taxonomy kind and component.",
		}, []string{"kind", "component"}),
	}
	prometheus.MustRegister(
		r.httpRequests, r.relayRequests, r.relayTokens, r.credentialPoolSize,
		r.failovers, r.tokenRefreshes, r.tokenRefreshSecs, r.quotaUtilization, r.errors,
	)
	return r
}

func (r *PrometheusRecorder) RecordHTTPRequest(startTime time.Time, path, method, statusCode string) {
	r.httpRequests.WithLabelValues(path, method, statusCode).Inc()
}

func (r *PrometheusRecorder) RecordRelayRequest(startTime time.Time, vendor, model string, success bool, promptTokens, completionTokens int) {
	r.relayRequests.WithLabelValues(vendor, model, boolLabel(success)).Inc()
	r.relayTokens.WithLabelValues(vendor, model, "prompt").Add(float64(promptTokens))
	r.relayTokens.WithLabelValues(vendor, model, "completion").Add(float64(completionTokens))
}

func (r *PrometheusRecorder) UpdateCredentialPoolSize(vendor string, active, quarantined int) {
	r.credentialPoolSize.WithLabelValues(vendor, "active").Set(float64(active))
	r.credentialPoolSize.WithLabelValues(vendor, "quarantined").Set(float64(quarantined))
}

func (r *PrometheusRecorder) RecordCredentialFailover(vendor, reason string) {
	r.failovers.WithLabelValues(vendor, reason).Inc()
}

func (r *PrometheusRecorder) RecordTokenRefresh(vendor string, success bool, duration time.Duration) {
	r.tokenRefreshes.WithLabelValues(vendor, boolLabel(success)).Inc()
	r.tokenRefreshSecs.WithLabelValues(vendor).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) UpdateQuotaUtilization(vendor string, credentialId int, utilization float64) {
	r.quotaUtilization.WithLabelValues(vendor, itoa(credentialId)).Set(utilization)
}

func (r *PrometheusRecorder) RecordError(kind, component string) {
	r.errors.WithLabelValues(kind, component).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
