// Package store abstracts the durable key-value store that holds all
// cross-request state. The broker itself keeps nothing in process
// memory between requests; tokens, registries, rate windows and
// webhook events all live behind this interface. The store is
// eventually consistent and offers no transactions and no
// compare-and-swap, so every caller treats read-modify-write cycles
// as best effort and writes whole records rather than patches.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no live value exists under the
// requested key. Callers distinguish it from transport failures to
// decide between "absent" and "store unavailable" handling.
var ErrNotFound = errors.New("store: key not found")

// Key families used by the broker. Tenant isolation rests entirely on
// these prefixes; an alias embedded in the wrong key is a cross-tenant
// leak, so key construction is centralized here.
const (
	KeyUserTokenLegacy  = "token:user"
	KeyUserTokenPrefix  = "token:user:"
	KeyPageTokenPrefix  = "page_token:"
	KeyLinkedPrefix     = "linked_token:"
	KeyAccountsLegacy   = "accounts_index"
	KeyAccountsPrefix   = "accounts_index:"
	KeyTenantRegistry   = "businesses_list"
	KeyOAuthStatePrefix = "oauth_state:"
	KeyRatePrefix       = "rate:"
	KeyEventPrefix      = "event:"
)

// Store is the minimal durable KV contract every component depends
// on. Put with a non-positive ttl persists the value without expiry.
// List returns the keys currently live under a prefix; on Redis it is
// backed by SCAN and makes no ordering promise.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// UserTokenKey returns the tenant-scoped user token key for an alias.
func UserTokenKey(alias string) string { return KeyUserTokenPrefix + alias }

// PageTokenKey returns the global page token key for a page id.
func PageTokenKey(pageID string) string { return KeyPageTokenPrefix + pageID }

// LinkedTokenKey returns the global linked-account token key.
func LinkedTokenKey(accountID string) string { return KeyLinkedPrefix + accountID }

// AccountsKey returns the tenant-scoped accounts index key.
func AccountsKey(alias string) string { return KeyAccountsPrefix + alias }

// OAuthStateKey returns the pending-authorization record key for a
// CSRF state token.
func OAuthStateKey(state string) string { return KeyOAuthStatePrefix + state }

// RateKey returns the sliding-window record key for a client identity.
func RateKey(clientID string) string { return KeyRatePrefix + clientID }

// EventKey returns the persisted webhook event key for an event id.
func EventKey(eventID string) string { return KeyEventPrefix + eventID }
