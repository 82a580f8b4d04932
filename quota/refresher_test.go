package quota

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/credential"
)

type fakeProbe struct {
	limit, used int64
	err         error
	calls       atomic.Int32
}

func (p *fakeProbe) Probe(ctx context.Context, c *credential.Credential) (int64, int64, error) {
	p.calls.Add(1)
	return p.limit, p.used, p.err
}

func addCredential(t *testing.T, store credential.Store, vendor credential.Vendor, name string) *credential.Credential {
	t.Helper()
	c := &credential.Credential{Vendor: vendor, Name: name, IsActive: true}
	require.NoError(t, store.Add(context.Background(), c))
	return c
}

func newTestRefresher(store credential.Store) *Refresher {
	r := New(store, nil)
	r.InitialDelay = 0
	r.RefreshInterval = time.Hour
	r.IntraVendorDelay = 0
	r.InterVendorDelay = 0
	return r
}

func TestRefresher_Tick_ProbesEveryActiveCredentialAndPersistsQuota(t *testing.T) {
	store := credential.NewMemStore()
	c1 := addCredential(t, store, credential.VendorAnthropic, "a")
	c2 := addCredential(t, store, credential.VendorAnthropic, "b")

	probe := &fakeProbe{limit: 100, used: 40}
	r := newTestRefresher(store)
	r.RegisterVendor(credential.VendorAnthropic, probe)

	r.Tick(context.Background())

	assert.EqualValues(t, 2, probe.calls.Load())
	got1, err := store.GetById(context.Background(), c1.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 100, got1.QuotaLimit)
	assert.EqualValues(t, 40, got1.QuotaUsed)
	got2, err := store.GetById(context.Background(), c2.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 40, got2.QuotaUsed)
}

func TestRefresher_Tick_ProbeFailureDoesNotStopOtherCredentials(t *testing.T) {
	store := credential.NewMemStore()
	bad := addCredential(t, store, credential.VendorAnthropic, "bad")
	good := addCredential(t, store, credential.VendorAnthropic, "good")

	calls := 0
	probe := probeFunc(func(ctx context.Context, c *credential.Credential) (int64, int64, error) {
		calls++
		if c.Id == bad.Id {
			return 0, 0, assert.AnError
		}
		return 100, 10, nil
	})
	r := newTestRefresher(store)
	r.RegisterVendor(credential.VendorAnthropic, probe)

	r.Tick(context.Background())

	assert.Equal(t, 2, calls)
	gotGood, err := store.GetById(context.Background(), good.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 10, gotGood.QuotaUsed)
}

func TestRefresher_Tick_SkipsWhenPreviousPassStillRunning(t *testing.T) {
	store := credential.NewMemStore()
	addCredential(t, store, credential.VendorAnthropic, "only")

	r := newTestRefresher(store)
	r.running.Store(true)

	probe := &fakeProbe{limit: 100, used: 10}
	r.RegisterVendor(credential.VendorAnthropic, probe)

	r.Tick(context.Background())

	assert.EqualValues(t, 0, probe.calls.Load(), "a tick finding running=true must not probe anything")
}

func TestRefresher_Tick_ZeroLimitSkipsUtilizationButStillPersists(t *testing.T) {
	store := credential.NewMemStore()
	c := addCredential(t, store, credential.VendorAnthropic, "unlimited")

	r := newTestRefresher(store)
	r.RegisterVendor(credential.VendorAnthropic, &fakeProbe{limit: 0, used: 0})

	r.Tick(context.Background())

	got, err := store.GetById(context.Background(), c.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.QuotaLimit)
}

type probeFunc func(ctx context.Context, c *credential.Credential) (int64, int64, error)

func (f probeFunc) Probe(ctx context.Context, c *credential.Credential) (int64, int64, error) {
	return f(ctx, c)
}
