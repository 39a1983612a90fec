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

// TenantRegistryRepo tracks the connected businesses and the default
// pointer among them. The whole registry is one record replaced
// wholesale on every mutation; concurrent writers race with
// last-writer-wins semantics, which is accepted for a small, rarely
// updated list.
type TenantRegistryRepo struct {
	Store store.Store
	Now   func() time.Time
}

// NewTenantRegistryRepo builds a registry over the given store.
func NewTenantRegistryRepo(s store.Store) *TenantRegistryRepo {
	return &TenantRegistryRepo{Store: s, Now: time.Now}
}

// Get reads the registry. An absent record comes back as an empty
// registry value rather than an error; only transport failures
// propagate.
func (r *TenantRegistryRepo) Get(ctx context.Context) (model.TenantRegistry, error) {
	raw, err := r.Store.Get(ctx, store.KeyTenantRegistry)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.TenantRegistry{}, nil
		}
		return model.TenantRegistry{}, err
	}
	var reg model.TenantRegistry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return model.TenantRegistry{}, fmt.Errorf("decode tenant registry: %w", err)
	}
	return reg, nil
}

// AddOrTouch registers alias, creating the registry with alias as the
// default tenant when it does not exist yet. A known alias only gets
// its ConnectedAt bumped; a new alias joins an existing registry
// without disturbing the current default.
func (r *TenantRegistryRepo) AddOrTouch(ctx context.Context, alias string) error {
	reg, err := r.Get(ctx)
	if err != nil {
		return err
	}
	now := r.Now().UTC()
	if i, t := reg.Find(alias); i >= 0 {
		t.ConnectedAt = now
	} else {
		reg.Tenants = append(reg.Tenants, model.Tenant{
			Alias:       alias,
			ConnectedAt: now,
			IsDefault:   len(reg.Tenants) == 0,
		})
		if len(reg.Tenants) == 1 {
			reg.DefaultAlias = alias
		}
	}
	return r.put(ctx, reg)
}

// Seed writes a prepared tenant as the sole registry entry. It is
// used by the accounts-index migration to bootstrap multi-tenancy
// from a pre-multi-tenant deployment and is a no-op when the registry
// already has tenants.
func (r *TenantRegistryRepo) Seed(ctx context.Context, tenant model.Tenant) error {
	reg, err := r.Get(ctx)
	if err != nil {
		return err
	}
	if len(reg.Tenants) > 0 {
		return nil
	}
	tenant.IsDefault = true
	if tenant.ConnectedAt.IsZero() {
		tenant.ConnectedAt = r.Now().UTC()
	}
	reg.Tenants = []model.Tenant{tenant}
	reg.DefaultAlias = tenant.Alias
	log.Info().Str("tenant", tenant.Alias).Msg("seeded tenant registry from legacy data")
	return r.put(ctx, reg)
}

// ResolveAlias maps a caller-supplied tenant reference to a canonical
// alias. A match on alias or external id returns the canonical alias.
// A non-empty identifier that matches nothing is echoed back verbatim
// so the caller can report "tenant not found" precisely instead of
// being handed some other tenant's data. An empty identifier resolves
// to the default alias, then the first registered alias, then the
// legacy sentinel when no registry exists at all.
func (r *TenantRegistryRepo) ResolveAlias(ctx context.Context, requested string) (string, error) {
	reg, err := r.Get(ctx)
	if err != nil {
		return "", err
	}
	if requested != "" {
		if _, t := reg.Find(requested); t != nil {
			return t.Alias, nil
		}
		return requested, nil
	}
	if reg.DefaultAlias != "" {
		return reg.DefaultAlias, nil
	}
	if len(reg.Tenants) > 0 {
		return reg.Tenants[0].Alias, nil
	}
	return LegacyAlias, nil
}

// SetDefault moves the default pointer to the tenant matching
// identifier (alias or external id). The registry must be non-empty
// and the tenant known; the updated registry is written back as one
// atomic replace so exactly one IsDefault flag is ever set.
func (r *TenantRegistryRepo) SetDefault(ctx context.Context, identifier string) error {
	reg, err := r.Get(ctx)
	if err != nil {
		return err
	}
	if len(reg.Tenants) == 0 {
		return ErrRegistryEmpty
	}
	idx, target := reg.Find(identifier)
	if idx < 0 {
		return ErrTenantNotFound
	}
	for i := range reg.Tenants {
		reg.Tenants[i].IsDefault = i == idx
	}
	reg.DefaultAlias = target.Alias
	return r.put(ctx, reg)
}

func (r *TenantRegistryRepo) put(ctx context.Context, reg model.TenantRegistry) error {
	reg.UpdatedAt = r.Now().UTC()
	raw, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode tenant registry: %w", err)
	}
	// The registry never expires; tenants have no removal path here.
	return r.Store.Put(ctx, store.KeyTenantRegistry, raw, 0)
}
