package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

func newVaultHarness(t *testing.T) (*TokenVault, *store.Memory, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	mem := store.NewMemory()
	mem.Now = func() time.Time { return *clock }
	v := NewTokenVault(mem)
	v.Now = func() time.Time { return *clock }
	return v, mem, clock
}

func TestStoreUserTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newVaultHarness(t)

	require.NoError(t, v.StoreUserToken(ctx, "acme", "tok-123", 3600*48))
	got, err := v.GetUserToken(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "tok-123", got)
}

func TestStoreUserTokenInvalidTTLFallsBack(t *testing.T) {
	ctx := context.Background()

	for _, ttl := range []int64{0, -5} {
		v, _, clock := newVaultHarness(t)
		require.NoError(t, v.StoreUserToken(ctx, "acme", "tok", ttl))

		// Valid right up to (just inside) the 60-day default.
		*clock = clock.Add(59 * 24 * time.Hour)
		got, err := v.GetUserToken(ctx, "acme")
		require.NoError(t, err, "ttl=%d", ttl)
		require.Equal(t, "tok", got)

		// Gone once the default lifetime has elapsed.
		*clock = clock.Add(2 * 24 * time.Hour)
		_, err = v.GetUserToken(ctx, "acme")
		require.ErrorIs(t, err, ErrCredentialMissing, "ttl=%d", ttl)
	}
}

func TestStoreUserTokenStoreTTLShorterThanExpiry(t *testing.T) {
	ctx := context.Background()
	v, mem, _ := newVaultHarness(t)

	require.NoError(t, v.StoreUserToken(ctx, "acme", "tok", 10*86400))
	ttl, ok := mem.TTL(store.UserTokenKey("acme"))
	require.True(t, ok)
	// One day shaved off the ten-day lifetime.
	require.Equal(t, 9*24*time.Hour, ttl)
}

func TestStoreUserTokenShortLifetimeKeepsMinimumTTL(t *testing.T) {
	ctx := context.Background()
	v, mem, _ := newVaultHarness(t)

	require.NoError(t, v.StoreUserToken(ctx, "acme", "tok", 120))
	ttl, ok := mem.TTL(store.UserTokenKey("acme"))
	require.True(t, ok)
	require.Equal(t, time.Hour, ttl)
}

func TestGetUserTokenLogicalExpiry(t *testing.T) {
	ctx := context.Background()
	v, mem, clock := newVaultHarness(t)

	require.NoError(t, v.StoreUserToken(ctx, "acme", "tok", 3600))

	// Advance only the vault clock: the store entry is still live
	// (its TTL is the one-hour floor), but the logical expiry has
	// passed. The vault must evict and report the credential missing.
	vaultClock := clock.Add(2 * time.Hour)
	v.Now = func() time.Time { return vaultClock }

	_, err := v.GetUserToken(ctx, "acme")
	require.ErrorIs(t, err, ErrCredentialMissing)

	// The eviction removed the physical entry too.
	_, err = mem.Get(ctx, store.UserTokenKey("acme"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetUserTokenMissing(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newVaultHarness(t)

	_, err := v.GetUserToken(ctx, "nobody")
	require.ErrorIs(t, err, ErrCredentialMissing)
}

func TestLegacyMigrationIdempotent(t *testing.T) {
	ctx := context.Background()
	v, mem, clock := newVaultHarness(t)

	// Seed only the pre-multi-tenant unscoped key.
	require.NoError(t, v.putRecord(ctx, store.KeyUserTokenLegacy, recordWithExpiry("old-tok", clock.Add(30*24*time.Hour)), 0))

	first, err := v.GetUserToken(ctx, LegacyAlias)
	require.NoError(t, err)
	require.Equal(t, "old-tok", first)

	second, err := v.GetUserToken(ctx, LegacyAlias)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Exactly one migrated tenant-scoped record exists.
	keys, err := mem.List(ctx, store.KeyUserTokenPrefix)
	require.NoError(t, err)
	require.Equal(t, []string{store.UserTokenKey(LegacyAlias)}, keys)
}

func TestLegacyFallbackOnlyForLegacyAlias(t *testing.T) {
	ctx := context.Background()
	v, _, clock := newVaultHarness(t)

	require.NoError(t, v.putRecord(ctx, store.KeyUserTokenLegacy, recordWithExpiry("old-tok", clock.Add(time.Hour)), 0))

	_, err := v.GetUserToken(ctx, "acme")
	require.ErrorIs(t, err, ErrCredentialMissing)
}

func TestPageAndLinkedTokens(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newVaultHarness(t)

	require.NoError(t, v.StorePageToken(ctx, "page-1", "page-tok"))
	require.NoError(t, v.StoreLinkedToken(ctx, "ig-9", "page-tok"))

	got, err := v.GetPageToken(ctx, "page-1")
	require.NoError(t, err)
	require.Equal(t, "page-tok", got)

	// Linked accounts carry their page's token.
	got, err = v.GetLinkedToken(ctx, "ig-9")
	require.NoError(t, err)
	require.Equal(t, "page-tok", got)

	_, err = v.GetPageToken(ctx, "page-2")
	require.ErrorIs(t, err, ErrCredentialMissing)
}

func recordWithExpiry(token string, exp time.Time) model.TokenRecord {
	return model.TokenRecord{Token: token, ExpiresAt: &exp, IssuedAt: exp.Add(-time.Hour)}
}
