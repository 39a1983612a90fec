package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

// AccountIndexRepo caches the downstream accounts discovered for each
// tenant. Indexes are replaced wholesale after every completed
// authorization run and never merged. Reads for the legacy alias fall
// back to the pre-multi-tenant unscoped key and migrate forward,
// seeding the tenant registry along the way so an old deployment
// upgrades itself without an offline step.
type AccountIndexRepo struct {
	Store    store.Store
	Registry *TenantRegistryRepo
	Now      func() time.Time
}

// NewAccountIndexRepo builds the repo. Registry may not be nil; the
// legacy migration path needs it to bootstrap the tenant list.
func NewAccountIndexRepo(s store.Store, reg *TenantRegistryRepo) *AccountIndexRepo {
	return &AccountIndexRepo{Store: s, Registry: reg, Now: time.Now}
}

// Put replaces the accounts index for alias. The stored record always
// embeds the alias it is keyed under and a fresh UpdatedAt stamp.
func (r *AccountIndexRepo) Put(ctx context.Context, alias string, index model.AccountsIndex) error {
	index.TenantAlias = alias
	index.UpdatedAt = r.Now().UTC()
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode accounts index: %w", err)
	}
	return r.Store.Put(ctx, store.AccountsKey(alias), raw, 0)
}

// Get returns the accounts index for alias. On a miss for the legacy
// alias it falls back to the unscoped key, migrates the record to the
// scoped key, and when the tenant registry is still empty seeds
// the registry with a single default tenant derived from the migrated
// data. Absence is reported as store.ErrNotFound.
func (r *AccountIndexRepo) Get(ctx context.Context, alias string) (model.AccountsIndex, error) {
	idx, err := r.get(ctx, store.AccountsKey(alias))
	switch {
	case err == nil:
		return idx, nil
	case !errors.Is(err, store.ErrNotFound):
		return model.AccountsIndex{}, err
	}
	if alias != LegacyAlias {
		return model.AccountsIndex{}, store.ErrNotFound
	}

	idx, err = r.get(ctx, store.KeyAccountsLegacy)
	if err != nil {
		return model.AccountsIndex{}, err
	}
	idx.TenantAlias = alias
	if err := r.Put(ctx, alias, idx); err != nil {
		return model.AccountsIndex{}, fmt.Errorf("migrate legacy accounts index: %w", err)
	}
	log.Info().Str("tenant", alias).Int("accounts", len(idx.Accounts)).
		Msg("migrated legacy accounts index to tenant-scoped key")

	tenant := model.Tenant{Alias: alias, ConnectedAt: idx.UpdatedAt}
	if idx.DefaultPageID != "" {
		if _, acct := findAccount(idx.Accounts, idx.DefaultPageID); acct != nil {
			tenant.DisplayName = acct.Name
		}
	}
	if err := r.Registry.Seed(ctx, tenant); err != nil {
		// The index migration already succeeded; a seeding failure
		// only delays registry bootstrap until the next read.
		log.Error().Err(err).Msg("seeding tenant registry from legacy index failed")
	}
	return idx, nil
}

func (r *AccountIndexRepo) get(ctx context.Context, key string) (model.AccountsIndex, error) {
	raw, err := r.Store.Get(ctx, key)
	if err != nil {
		return model.AccountsIndex{}, err
	}
	var idx model.AccountsIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return model.AccountsIndex{}, fmt.Errorf("decode accounts index %s: %w", key, err)
	}
	return idx, nil
}

func findAccount(accounts []model.ConnectedAccount, id string) (int, *model.ConnectedAccount) {
	for i := range accounts {
		if accounts[i].ID == id {
			return i, &accounts[i]
		}
	}
	return -1, nil
}
