// Package quota implements the background scheduled polling of each
// vendor's credential pool for remaining usage, persisting the result and
// logging low-quota alerts.
package quota

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Laisky/zap"

	"github.com/relaygate/core/common/metrics"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/internal/config"
	"github.com/relaygate/core/internal/logging"
)

// VendorProbe queries one credential's current usage against its vendor's
// quota/usage API. Implementations live alongside each vendor's package
// (mirroring token.VendorRefresher's per-vendor registration shape).
type VendorProbe interface {
	Probe(ctx context.Context, c *credential.Credential) (limit, used int64, err error)
}

const (
	lowQuotaWarnRatio     = 0.20
	lowQuotaCriticalRatio = 0.05
)

// Refresher polls every registered vendor's active credentials on a fixed
// schedule. A single long pass never overlaps with the next tick: if it is
// still running when the ticker fires again, that tick is skipped outright
// rather than queued.
type Refresher struct {
	Store   credential.Store
	Metrics metrics.Recorder
	vendors map[credential.Vendor]VendorProbe

	InitialDelay     time.Duration
	RefreshInterval  time.Duration
	IntraVendorDelay time.Duration
	InterVendorDelay time.Duration

	running atomic.Bool
}

// New builds a Refresher with the package's configured defaults.
func New(store credential.Store, recorder metrics.Recorder) *Refresher {
	return &Refresher{
		Store:            store,
		Metrics:          recorder,
		vendors:          make(map[credential.Vendor]VendorProbe),
		InitialDelay:     config.QuotaInitialDelay,
		RefreshInterval:  config.QuotaRefreshInterval,
		IntraVendorDelay: config.QuotaIntraVendorDelay,
		InterVendorDelay: config.QuotaInterVendorDelay,
	}
}

// RegisterVendor wires a VendorProbe for a given vendor.
func (r *Refresher) RegisterVendor(v credential.Vendor, p VendorProbe) {
	r.vendors[v] = p
}

// Run blocks until ctx is cancelled: it waits InitialDelay, runs one pass,
// then runs one pass every RefreshInterval thereafter.
func (r *Refresher) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.InitialDelay):
	}
	r.Tick(ctx)

	ticker := time.NewTicker(r.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one pass across every registered vendor, in a fixed order for
// reproducibility. Exported so tests and a manual-trigger admin endpoint can
// drive a single pass without waiting through InitialDelay/RefreshInterval.
func (r *Refresher) Tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		logging.SysLog("quota refresh pass skipped: previous pass still running")
		return
	}
	defer r.running.Store(false)

	vendors := make([]string, 0, len(r.vendors))
	for v := range r.vendors {
		vendors = append(vendors, string(v))
	}
	sort.Strings(vendors)

	for i, vendorName := range vendors {
		vendor := credential.Vendor(vendorName)
		r.pollVendor(ctx, vendor, r.vendors[vendor])
		if i < len(vendors)-1 {
			if !sleepOrDone(ctx, r.InterVendorDelay) {
				return
			}
		}
	}
}

func (r *Refresher) pollVendor(ctx context.Context, vendor credential.Vendor, probe VendorProbe) {
	creds, err := r.Store.GetActive(ctx, vendor)
	if err != nil {
		logging.SysError("quota refresh: list active credentials failed",
			zap.String("vendor", string(vendor)), zap.Error(err))
		return
	}

	for i, c := range creds {
		r.pollCredential(ctx, vendor, c, probe)
		if i < len(creds)-1 {
			if !sleepOrDone(ctx, r.IntraVendorDelay) {
				return
			}
		}
	}
}

func (r *Refresher) pollCredential(ctx context.Context, vendor credential.Vendor, c *credential.Credential, probe VendorProbe) {
	limit, used, err := probe.Probe(ctx, c)
	if err != nil {
		logging.SysError("quota probe failed",
			zap.String("vendor", string(vendor)), zap.Int("credential_id", c.Id), zap.Error(err))
		return
	}

	if updErr := r.Store.UpdateQuota(ctx, c.Id, limit, used); updErr != nil {
		logging.SysError("persist quota usage failed",
			zap.Int("credential_id", c.Id), zap.Error(updErr))
	}

	if limit <= 0 {
		return
	}
	remaining := float64(limit-used) / float64(limit)
	if r.Metrics != nil {
		r.Metrics.UpdateQuotaUtilization(string(vendor), c.Id, 1-remaining)
	}

	fields := []zap.Field{
		zap.String("vendor", string(vendor)), zap.Int("credential_id", c.Id),
		zap.Int64("limit", limit), zap.Int64("used", used),
		zap.Float64("remaining_ratio", remaining),
	}
	switch {
	case remaining <= lowQuotaCriticalRatio:
		logging.SysError("credential quota critically low", fields...)
	case remaining <= lowQuotaWarnRatio:
		logging.SysWarn("credential quota running low", fields...)
	}
}

// ProbeOne queries a single credential's current usage on demand, without
// persisting or logging, for the operator-facing /usage endpoint.
func (r *Refresher) ProbeOne(ctx context.Context, vendor credential.Vendor, c *credential.Credential) (limit, used int64, err error) {
	probe, ok := r.vendors[vendor]
	if !ok {
		return 0, 0, errs.ClientError("no quota probe registered for vendor " + string(vendor))
	}
	return probe.Probe(ctx, c)
}

// sleepOrDone waits for d, returning false if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
