package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_AddAndGetActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	c := &Credential{Vendor: VendorAnthropic, Name: "primary", IsActive: true}
	require.NoError(t, store.Add(ctx, c))
	assert.NotZero(t, c.Id)

	active, err := store.GetActive(ctx, VendorAnthropic)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "primary", active[0].Name)
}

func TestMemStore_Add_DuplicateName(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.Add(ctx, &Credential{Vendor: VendorWarp, Name: "dup"}))
	err := store.Add(ctx, &Credential{Vendor: VendorWarp, Name: "dup"})
	require.Error(t, err)
	var dup *DuplicateCredential
	assert.ErrorAs(t, err, &dup)
}

func TestMemStore_GetRandomActive_ExcludesAndQuotaExhausted(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	a := &Credential{Vendor: VendorVertex, Name: "a", IsActive: true}
	b := &Credential{Vendor: VendorVertex, Name: "b", IsActive: true}
	require.NoError(t, store.Add(ctx, a))
	require.NoError(t, store.Add(ctx, b))

	future := time.Now().Add(time.Hour)
	require.NoError(t, store.MarkQuotaExhausted(ctx, a.Id, &future))

	picked, err := store.GetRandomActive(ctx, VendorVertex, map[int]bool{})
	require.NoError(t, err)
	require.NotNil(t, picked)
	assert.Equal(t, b.Id, picked.Id)

	picked, err = store.GetRandomActive(ctx, VendorVertex, map[int]bool{b.Id: true})
	require.NoError(t, err)
	assert.Nil(t, picked)
}

func TestMemStore_IncrementErrorCount_Quarantines(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	SetQuarantineThreshold(2)
	defer SetQuarantineThreshold(5)

	c := &Credential{Vendor: VendorKiro, Name: "flaky", IsActive: true}
	require.NoError(t, store.Add(ctx, c))

	require.NoError(t, store.IncrementErrorCount(ctx, c.Id, "timeout"))
	got, err := store.GetById(ctx, c.Id)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, store.IncrementErrorCount(ctx, c.Id, "timeout again"))
	got, err = store.GetById(ctx, c.Id)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	errs, err := store.ListErrors(ctx, VendorKiro)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, c.Id, errs[0].CredentialId)
}

func TestMemStore_RestoreFromError(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	c := &Credential{Vendor: VendorOrchids, Name: "r", IsActive: true}
	require.NoError(t, store.Add(ctx, c))
	require.NoError(t, store.MoveToError(ctx, c.Id, "quarantine"))

	errsList, err := store.ListErrors(ctx, VendorOrchids)
	require.NoError(t, err)
	require.Len(t, errsList, 1)

	restored, err := store.RestoreFromError(ctx, errsList[0].Id, "new-refresh-token")
	require.NoError(t, err)
	assert.True(t, restored.IsActive)
	assert.Equal(t, "new-refresh-token", restored.RefreshToken)

	errsList, err = store.ListErrors(ctx, VendorOrchids)
	require.NoError(t, err)
	assert.Empty(t, errsList)
}

func TestCredential_ActiveInvariant(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	inactive := &Credential{IsActive: false}
	assert.False(t, inactive.Active(now))

	exhausted := &Credential{IsActive: true, QuotaExhaustedUntil: &future}
	assert.False(t, exhausted.Active(now))

	recovered := &Credential{IsActive: true, QuotaExhaustedUntil: &past}
	assert.True(t, recovered.Active(now))
}

func TestCredential_AccessTokenExpired(t *testing.T) {
	now := time.Now()
	skew := 300 * time.Second

	noToken := &Credential{}
	assert.True(t, noToken.AccessTokenExpired(now, skew))

	soonExpiring := &Credential{AccessToken: "tok", ExpiresAt: ptr(now.Add(100 * time.Second))}
	assert.True(t, soonExpiring.AccessTokenExpired(now, skew))

	fresh := &Credential{AccessToken: "tok", ExpiresAt: ptr(now.Add(time.Hour))}
	assert.False(t, fresh.AccessTokenExpired(now, skew))
}

func ptr[T any](v T) *T { return &v }
