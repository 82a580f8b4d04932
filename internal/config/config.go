// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults mirror the figures named in the gateway's design notes.
const (
	DefaultRefreshSkewSeconds       = 300
	DefaultMaxRetries               = 3
	DefaultExcludeResetInterval     = time.Hour
	DefaultCancellationGracePeriod  = 2 * time.Second
	DefaultRelayTimeout             = 300 * time.Second
	DefaultQuotaInitialDelay        = 60 * time.Second
	DefaultQuotaRefreshInterval     = 5 * time.Minute
	DefaultQuotaIntraVendorDelay    = 2 * time.Second
	DefaultQuotaInterVendorDelay    = 5 * time.Second
	DefaultSessionTTL               = 30 * time.Minute
	DefaultErrorQuarantineThreshold = 5
)

var (
	// ListenAddr is the HTTP bind address for the gateway.
	ListenAddr = "0.0.0.0:3000"

	// DatabaseDSN points at the sqlite file backing the credential store.
	DatabaseDSN = "relaygate.db"

	// RedisAddr, when non-empty, backs the distributed excluded-credential set.
	RedisAddr = ""

	// SessionSecret derives the AES-GCM key used to encrypt refresh tokens at rest.
	SessionSecret = "relaygate-default-secret"

	// RefreshSkew is the safety margin subtracted from a token's expiry.
	RefreshSkew = time.Duration(DefaultRefreshSkewSeconds) * time.Second

	// MaxRetries bounds the selector's per-request failover attempts.
	MaxRetries = DefaultMaxRetries

	// ExcludeResetInterval is how often the quota-exhausted set is cleared.
	ExcludeResetInterval = DefaultExcludeResetInterval

	// CancellationGracePeriod bounds how long an aborted upstream call may linger.
	CancellationGracePeriod = DefaultCancellationGracePeriod

	// RelayTimeout is the hard deadline applied to a single relay attempt.
	RelayTimeout = DefaultRelayTimeout

	// QuotaInitialDelay is the pause before the first background quota poll.
	QuotaInitialDelay = DefaultQuotaInitialDelay

	// QuotaRefreshInterval is the steady-state period between quota poll passes.
	QuotaRefreshInterval = DefaultQuotaRefreshInterval

	// QuotaIntraVendorDelay separates consecutive probes within one vendor.
	QuotaIntraVendorDelay = DefaultQuotaIntraVendorDelay

	// QuotaInterVendorDelay separates probes across vendors.
	QuotaInterVendorDelay = DefaultQuotaInterVendorDelay

	// SessionTTL bounds how long an idle Warp session is retained.
	SessionTTL = DefaultSessionTTL

	// ErrorQuarantineThreshold is the consecutive-error count that quarantines a credential.
	ErrorQuarantineThreshold = DefaultErrorQuarantineThreshold

	// WarpHomeDir is the default home directory reported to Warp when a credential carries none.
	WarpHomeDir = "/root"

	// EnablePrometheusMetrics toggles the Prometheus recorder.
	EnablePrometheusMetrics = true

	// Debug toggles verbose request/response body logging (sanitized).
	Debug = false
)

// Load reads a .env file (if present) and overrides defaults from the environment.
// It never fails on a missing .env file; it returns an error only for malformed
// numeric/duration environment values so misconfiguration fails fast at startup.
func Load() error {
	_ = godotenv.Load()

	ListenAddr = getEnvString("LISTEN_ADDR", ListenAddr)
	DatabaseDSN = getEnvString("DATABASE_DSN", DatabaseDSN)
	RedisAddr = getEnvString("REDIS_ADDR", RedisAddr)
	SessionSecret = getEnvString("SESSION_SECRET", SessionSecret)
	WarpHomeDir = getEnvString("WARP_HOME_DIR", WarpHomeDir)

	var err error
	if RefreshSkew, err = getEnvSeconds("REFRESH_SKEW_SECONDS", RefreshSkew); err != nil {
		return err
	}
	if MaxRetries, err = getEnvInt("MAX_RETRIES", MaxRetries); err != nil {
		return err
	}
	if ExcludeResetInterval, err = getEnvSeconds("EXCLUDE_RESET_INTERVAL_SECONDS", ExcludeResetInterval); err != nil {
		return err
	}
	if CancellationGracePeriod, err = getEnvSeconds("CANCELLATION_GRACE_PERIOD_SECONDS", CancellationGracePeriod); err != nil {
		return err
	}
	if RelayTimeout, err = getEnvSeconds("RELAY_TIMEOUT_SECONDS", RelayTimeout); err != nil {
		return err
	}
	if QuotaInitialDelay, err = getEnvSeconds("QUOTA_INITIAL_DELAY_SECONDS", QuotaInitialDelay); err != nil {
		return err
	}
	if QuotaRefreshInterval, err = getEnvSeconds("QUOTA_REFRESH_INTERVAL_SECONDS", QuotaRefreshInterval); err != nil {
		return err
	}
	if QuotaIntraVendorDelay, err = getEnvSeconds("QUOTA_INTRA_VENDOR_DELAY_SECONDS", QuotaIntraVendorDelay); err != nil {
		return err
	}
	if QuotaInterVendorDelay, err = getEnvSeconds("QUOTA_INTER_VENDOR_DELAY_SECONDS", QuotaInterVendorDelay); err != nil {
		return err
	}
	if SessionTTL, err = getEnvSeconds("SESSION_TTL_SECONDS", SessionTTL); err != nil {
		return err
	}
	if ErrorQuarantineThreshold, err = getEnvInt("ERROR_QUARANTINE_THRESHOLD", ErrorQuarantineThreshold); err != nil {
		return err
	}
	if EnablePrometheusMetrics, err = getEnvBool("ENABLE_PROMETHEUS_METRICS", EnablePrometheusMetrics); err != nil {
		return err
	}
	if Debug, err = getEnvBool("DEBUG", Debug); err != nil {
		return err
	}

	return nil
}

func getEnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func getEnvSeconds(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, err
	}
	return time.Duration(n) * time.Second, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}
