// Package token produces valid upstream access tokens for pooled credentials,
// serialising refresh per credential id so a burst of concurrent requests for
// the same credential triggers exactly one upstream token exchange.
package token

import (
	"context"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/internal/config"
	"github.com/relaygate/core/internal/logging"
)

// VendorRefresher performs a single vendor's token exchange against a
// credential and returns the new access token plus its expiry.
type VendorRefresher interface {
	Refresh(ctx context.Context, c *credential.Credential) (accessToken string, expiresAt time.Time, err error)
}

// Refresher is the gateway-wide token service: getValidAccessToken(credential)
// from the component design, generalised over all vendors.
type Refresher struct {
	store       credential.Store
	httpClient  *http.Client
	refreshSkew time.Duration
	vendors     map[credential.Vendor]VendorRefresher
	group       singleflight.Group
}

// New builds a Refresher wired to store and the shared outbound HTTP client.
// Vendor-specific refreshers are registered via RegisterVendor.
func New(store credential.Store, httpClient *http.Client) *Refresher {
	return &Refresher{
		store:       store,
		httpClient:  httpClient,
		refreshSkew: config.RefreshSkew,
		vendors:     make(map[credential.Vendor]VendorRefresher),
	}
}

// RegisterVendor wires a VendorRefresher for a given vendor.
func (r *Refresher) RegisterVendor(v credential.Vendor, vr VendorRefresher) {
	r.vendors[v] = vr
}

// GetValidAccessToken returns c's access token, refreshing it first if it is
// absent or expiring within refreshSkew. Concurrent calls for the same
// credential id collapse into a single upstream exchange.
func (r *Refresher) GetValidAccessToken(ctx context.Context, c *credential.Credential) (string, error) {
	return r.getValidAccessToken(ctx, c, false)
}

// ForceRefresh bypasses the expiry check and always performs a fresh exchange,
// used by the selector after a 401/403 before giving up on a credential.
func (r *Refresher) ForceRefresh(ctx context.Context, c *credential.Credential) (string, error) {
	return r.getValidAccessToken(ctx, c, true)
}

func (r *Refresher) getValidAccessToken(ctx context.Context, c *credential.Credential, force bool) (string, error) {
	now := time.Now()
	if !force && !c.AccessTokenExpired(now, r.refreshSkew) {
		return c.AccessToken, nil
	}

	vr, ok := r.vendors[c.Vendor]
	if !ok {
		return "", errs.TokenRefreshFailed(0, errors.Errorf("no refresher registered for vendor %q", c.Vendor))
	}

	key := credentialKey(c)
	v, err, _ := r.group.Do(key, func() (any, error) {
		// Re-check after winning the singleflight race: another caller may
		// have refreshed while we were waiting.
		latest, getErr := r.store.GetById(ctx, c.Id)
		if getErr == nil && !force && !latest.AccessTokenExpired(time.Now(), r.refreshSkew) {
			return latest.AccessToken, nil
		}
		if getErr == nil {
			c = latest
		}

		accessToken, expiresAt, refreshErr := vr.Refresh(ctx, c)
		if refreshErr != nil {
			logging.From(ctx).Warn("token refresh failed",
				zap.String("vendor", string(c.Vendor)), zap.Int("credential_id", c.Id), zap.Error(refreshErr))
			_ = r.store.IncrementErrorCount(ctx, c.Id, refreshErr.Error())
			status := 0
			if ue, ok := errs.As(refreshErr); ok {
				status = ue.Status
			}
			return nil, errs.TokenRefreshFailed(status, refreshErr)
		}

		if updErr := r.store.UpdateToken(ctx, c.Id, accessToken, expiresAt); updErr != nil {
			return nil, errs.TokenRefreshFailed(0, updErr)
		}
		logging.From(ctx).Debug("token refreshed",
			zap.String("vendor", string(c.Vendor)), zap.Int("credential_id", c.Id), zap.Time("expires_at", expiresAt))
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func credentialKey(c *credential.Credential) string {
	return string(c.Vendor) + ":" + itoa(c.Id)
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
