package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_IsDeterministicAndDistinguishesKeys(t *testing.T) {
	a := Hash("sk-live-abc")
	b := Hash("sk-live-abc")
	c := Hash("sk-live-xyz")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemStore_CreateAndGetByHash(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	k := &APIKey{Name: "ci", KeyHash: Hash("sk-live-abc"), KeyPrefix: "sk-live", IsActive: true}
	require.NoError(t, store.Create(ctx, k))
	assert.NotZero(t, k.Id)

	got, err := store.GetByHash(ctx, Hash("sk-live-abc"))
	require.NoError(t, err)
	assert.Equal(t, k.Id, got.Id)

	_, err = store.GetByHash(ctx, Hash("unknown"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_Touch_IncrementsUseCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	k := &APIKey{Name: "ci", KeyHash: Hash("sk-live-abc"), IsActive: true}
	require.NoError(t, store.Create(ctx, k))

	now := time.Now()
	require.NoError(t, store.Touch(ctx, k.Id, now))

	got, err := store.GetById(ctx, k.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.UseCount)
	require.NotNil(t, got.LastUsedAt)
}

func TestAPIKey_AllowsModel(t *testing.T) {
	unrestricted := &APIKey{}
	assert.True(t, unrestricted.AllowsModel("claude-opus-4"))

	restricted := &APIKey{AllowedModels: []string{"claude-opus-4", "gpt-4o"}}
	assert.True(t, restricted.AllowsModel("gpt-4o"))
	assert.False(t, restricted.AllowsModel("gemini-2.5-pro"))
}

func TestMemStore_Delete_RemovesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	k := &APIKey{Name: "ci", KeyHash: Hash("sk-live-abc")}
	require.NoError(t, store.Create(ctx, k))

	require.NoError(t, store.Delete(ctx, k.Id))
	_, err := store.GetById(ctx, k.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}
