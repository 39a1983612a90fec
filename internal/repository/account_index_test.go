package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

func newIndexHarness(t *testing.T) (*AccountIndexRepo, *TenantRegistryRepo, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reg := NewTenantRegistryRepo(mem)
	return NewAccountIndexRepo(mem, reg), reg, mem
}

func sampleIndex(alias string) model.AccountsIndex {
	return model.AccountsIndex{
		TenantAlias: alias,
		Accounts: []model.ConnectedAccount{
			{ID: "p1", Name: "Main Page", Type: model.AccountTypePage},
			{ID: "ig1", Name: "main_ig", Type: model.AccountTypeLinked, LinkedPageID: "p1"},
		},
		DefaultPageID:        "p1",
		DefaultLinkedAccount: "ig1",
	}
}

func TestAccountIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newIndexHarness(t)

	require.NoError(t, repo.Put(ctx, "acme", sampleIndex("acme")))
	idx, err := repo.Get(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "acme", idx.TenantAlias)
	require.Len(t, idx.Accounts, 2)
	require.False(t, idx.UpdatedAt.IsZero())
}

func TestAccountIndexPutEmbedsStorageAlias(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newIndexHarness(t)

	// A stale alias in the value must never survive a Put under a
	// different key.
	require.NoError(t, repo.Put(ctx, "globex", sampleIndex("acme")))
	idx, err := repo.Get(ctx, "globex")
	require.NoError(t, err)
	require.Equal(t, "globex", idx.TenantAlias)
}

func TestAccountIndexMissIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newIndexHarness(t)

	_, err := repo.Get(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountIndexLegacyMigrationSeedsRegistry(t *testing.T) {
	ctx := context.Background()
	repo, reg, mem := newIndexHarness(t)

	legacy := sampleIndex("")
	legacy.UpdatedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, mem.Put(ctx, store.KeyAccountsLegacy, raw, 0))

	idx, err := repo.Get(ctx, LegacyAlias)
	require.NoError(t, err)
	require.Equal(t, LegacyAlias, idx.TenantAlias)
	require.Len(t, idx.Accounts, 2)

	// The scoped key now exists; a second read no longer needs the
	// legacy record.
	require.NoError(t, mem.Delete(ctx, store.KeyAccountsLegacy))
	again, err := repo.Get(ctx, LegacyAlias)
	require.NoError(t, err)
	require.Equal(t, idx.Accounts, again.Accounts)

	// Multi-tenancy was bootstrapped from the migrated data.
	registry, err := reg.Get(ctx)
	require.NoError(t, err)
	require.Len(t, registry.Tenants, 1)
	require.Equal(t, LegacyAlias, registry.DefaultAlias)
	require.Equal(t, "Main Page", registry.Tenants[0].DisplayName)
	require.True(t, registry.Tenants[0].IsDefault)
}

func TestAccountIndexLegacyFallbackOnlyForLegacyAlias(t *testing.T) {
	ctx := context.Background()
	repo, _, mem := newIndexHarness(t)

	raw, err := json.Marshal(sampleIndex(""))
	require.NoError(t, err)
	require.NoError(t, mem.Put(ctx, store.KeyAccountsLegacy, raw, 0))

	_, err = repo.Get(ctx, "acme")
	require.ErrorIs(t, err, store.ErrNotFound)
}
