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

// LegacyAlias is the tenant alias that pre-multi-tenant deployments
// implicitly ran under. Reads for this alias fall back to the old
// unscoped keys and migrate them forward on hit.
const LegacyAlias = "default"

const (
	// defaultUserTokenTTL is substituted when the upstream reports no
	// usable lifetime. Long-lived user tokens run about 60 days, so
	// failing closed to that bound never caches past a real expiry.
	defaultUserTokenTTL = 60 * 24 * time.Hour

	// pageTokenStoreTTL bounds how long page and linked-account
	// records sit in the store. The credentials themselves do not
	// expire for page admins, but re-enumeration refreshes them well
	// inside this horizon.
	pageTokenStoreTTL = 55 * 24 * time.Hour

	// expirySafetyMargin is shaved off the store TTL so the cache
	// entry disappears before the credential's real expiry, absorbing
	// clock skew between this host and the upstream.
	expirySafetyMargin = 24 * time.Hour

	// minStoreTTL keeps the safety margin from collapsing short-lived
	// tokens to an instantly-expiring entry.
	minStoreTTL = time.Hour
)

// TokenVault stores and retrieves the three token classes: tenant
// scoped user tokens, and globally scoped page and linked-account
// tokens. All records are full overwrites; expiry is enforced both by
// store TTL and by a logical check on read.
type TokenVault struct {
	Store store.Store
	// Now is swappable for expiry tests.
	Now func() time.Time
}

// NewTokenVault builds a vault over the given store.
func NewTokenVault(s store.Store) *TokenVault {
	return &TokenVault{Store: s, Now: time.Now}
}

// StoreUserToken overwrites the tenant-scoped user token for alias.
// ttlSeconds is the upstream-reported lifetime; non-positive values
// fall back to the 60-day default rather than caching indefinitely.
// The store-level TTL runs slightly shorter than the logical expiry
// so the entry vanishes before the token actually dies.
func (v *TokenVault) StoreUserToken(ctx context.Context, alias, token string, ttlSeconds int64) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		log.Warn().Str("tenant", alias).Int64("ttl_seconds", ttlSeconds).
			Msg("invalid token lifetime from upstream, using 60-day default")
		ttl = defaultUserTokenTTL
	}
	now := v.Now().UTC()
	exp := now.Add(ttl)
	rec := model.TokenRecord{
		Token:     token,
		ExpiresAt: &exp,
		IssuedAt:  now,
		Scope:     alias,
	}
	return v.putRecord(ctx, store.UserTokenKey(alias), rec, storeTTLFor(ttl))
}

// GetUserToken returns the valid user token for alias. A record past
// its logical expiry is evicted and reported as ErrCredentialMissing
// even if the store entry has not physically expired yet. For the
// legacy alias, a miss falls back to the old unscoped key and the
// record is written through to the scoped key on hit, so the
// migration heals itself one read at a time.
func (v *TokenVault) GetUserToken(ctx context.Context, alias string) (string, error) {
	key := store.UserTokenKey(alias)
	rec, err := v.getRecord(ctx, key)
	switch {
	case err == nil:
		if rec.Expired(v.Now()) {
			_ = v.Store.Delete(ctx, key)
			return "", ErrCredentialMissing
		}
		return rec.Token, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	if alias != LegacyAlias {
		return "", ErrCredentialMissing
	}

	// Pre-multi-tenant deployments stored the single user token
	// unscoped. Migrate it forward on read.
	legacy, err := v.getRecord(ctx, store.KeyUserTokenLegacy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrCredentialMissing
		}
		return "", err
	}
	if legacy.Expired(v.Now()) {
		_ = v.Store.Delete(ctx, store.KeyUserTokenLegacy)
		return "", ErrCredentialMissing
	}
	legacy.Scope = alias
	remaining := defaultUserTokenTTL
	if legacy.ExpiresAt != nil {
		remaining = legacy.ExpiresAt.Sub(v.Now())
	}
	if err := v.putRecord(ctx, key, legacy, storeTTLFor(remaining)); err != nil {
		return "", fmt.Errorf("migrate legacy user token: %w", err)
	}
	log.Info().Str("tenant", alias).Msg("migrated legacy user token to tenant-scoped key")
	return legacy.Token, nil
}

// StorePageToken records a page's token under its global key.
func (v *TokenVault) StorePageToken(ctx context.Context, pageID, token string) error {
	return v.storeGlobal(ctx, store.PageTokenKey(pageID), token)
}

// GetPageToken returns the stored token for a page, or
// ErrCredentialMissing when none is cached.
func (v *TokenVault) GetPageToken(ctx context.Context, pageID string) (string, error) {
	return v.getGlobal(ctx, store.PageTokenKey(pageID))
}

// StoreLinkedToken records a linked account's token. The upstream
// platform reuses the owning page's token for its linked account, so
// callers pass the page token here.
func (v *TokenVault) StoreLinkedToken(ctx context.Context, accountID, token string) error {
	return v.storeGlobal(ctx, store.LinkedTokenKey(accountID), token)
}

// GetLinkedToken returns the stored token for a linked account.
func (v *TokenVault) GetLinkedToken(ctx context.Context, accountID string) (string, error) {
	return v.getGlobal(ctx, store.LinkedTokenKey(accountID))
}

func (v *TokenVault) storeGlobal(ctx context.Context, key, token string) error {
	rec := model.TokenRecord{
		Token:    token,
		IssuedAt: v.Now().UTC(),
		Scope:    model.TokenScopeGlobal,
	}
	return v.putRecord(ctx, key, rec, pageTokenStoreTTL)
}

func (v *TokenVault) getGlobal(ctx context.Context, key string) (string, error) {
	rec, err := v.getRecord(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrCredentialMissing
		}
		return "", err
	}
	return rec.Token, nil
}

func (v *TokenVault) getRecord(ctx context.Context, key string) (model.TokenRecord, error) {
	raw, err := v.Store.Get(ctx, key)
	if err != nil {
		return model.TokenRecord{}, err
	}
	var rec model.TokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.TokenRecord{}, fmt.Errorf("decode token record %s: %w", key, err)
	}
	return rec, nil
}

func (v *TokenVault) putRecord(ctx context.Context, key string, rec model.TokenRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode token record %s: %w", key, err)
	}
	return v.Store.Put(ctx, key, raw, ttl)
}

// storeTTLFor derives the store-level TTL from a logical lifetime:
// one day short of the real expiry, but never under an hour.
func storeTTLFor(lifetime time.Duration) time.Duration {
	ttl := lifetime - expirySafetyMargin
	if ttl < minStoreTTL {
		ttl = minStoreTTL
	}
	return ttl
}
