package selector

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/token"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func newTestSelector(t *testing.T) (*Selector, credential.Store) {
	t.Helper()
	store := credential.NewMemStore()
	refresher := token.New(store, nil)
	sel := New(store, refresher, NewMemExcludedSet())
	sel.MaxRetries = 3
	return sel, store
}

func addCredential(t *testing.T, store credential.Store, vendor credential.Vendor, name string) *credential.Credential {
	t.Helper()
	c := &credential.Credential{Vendor: vendor, Name: name, IsActive: true}
	require.NoError(t, store.Add(context.Background(), c))
	return c
}

func TestSelector_WithCredential_SuccessIncrementsUseCount(t *testing.T) {
	sel, store := newTestSelector(t)
	c := addCredential(t, store, credential.VendorAnthropic, "only")

	err := sel.WithCredential(context.Background(), credential.VendorAnthropic, func(ctx context.Context, got *credential.Credential) error {
		assert.Equal(t, c.Id, got.Id)
		return nil
	})
	require.NoError(t, err)

	updated, err := store.GetById(context.Background(), c.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated.UseCount)
}

func TestSelector_WithCredential_FailoverOn429(t *testing.T) {
	sel, store := newTestSelector(t)
	a := addCredential(t, store, credential.VendorVertex, "a")
	b := addCredential(t, store, credential.VendorVertex, "b")

	succeeded := map[int]bool{}
	err := sel.WithCredential(context.Background(), credential.VendorVertex, func(ctx context.Context, c *credential.Credential) error {
		if c.Id == a.Id {
			return errs.UpstreamTransient(http.StatusTooManyRequests, "rate limit exceeded")
		}
		succeeded[c.Id] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, succeeded[b.Id])

	gotA, err := store.GetById(context.Background(), a.Id)
	require.NoError(t, err)
	assert.NotNil(t, gotA.QuotaExhaustedUntil)
	assert.False(t, gotA.Active(gotA.QuotaExhaustedUntil.Add(-1)))
}

func TestSelector_WithCredential_ExhaustionReturnsNoCredentialAvailable(t *testing.T) {
	sel, store := newTestSelector(t)
	addCredential(t, store, credential.VendorWarp, "flaky")

	err := sel.WithCredential(context.Background(), credential.VendorWarp, func(ctx context.Context, c *credential.Credential) error {
		return errs.UpstreamTransient(http.StatusInternalServerError, "upstream exploded")
	})
	require.Error(t, err)
	classified, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUpstreamTransient, classified.Kind)
}

func TestSelector_WithCredential_NonRetryablePropagatesImmediately(t *testing.T) {
	sel, store := newTestSelector(t)
	a := addCredential(t, store, credential.VendorAnthropic, "a")
	addCredential(t, store, credential.VendorAnthropic, "b")

	calls := 0
	err := sel.WithCredential(context.Background(), credential.VendorAnthropic, func(ctx context.Context, c *credential.Credential) error {
		calls++
		if c.Id == a.Id {
			return errs.ClientError("missing messages field")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNextHourBoundary(t *testing.T) {
	now := mustParseTime(t, "2026-08-01T10:15:00Z")
	next := NextHourBoundary(now)
	assert.Equal(t, mustParseTime(t, "2026-08-01T11:00:00Z"), next)

	onBoundary := mustParseTime(t, "2026-08-01T11:00:00Z")
	assert.Equal(t, mustParseTime(t, "2026-08-01T12:00:00Z"), NextHourBoundary(onBoundary))
}
