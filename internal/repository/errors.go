// Package repository implements the durable-state subsystems of the
// broker on top of the key-value store: the token vault, the tenant
// registry, the accounts index and the webhook event log. The error
// values here are shared sentinels that let handlers map failure
// modes to distinct responses instead of collapsing everything into
// a 500.
package repository

import "errors"

// ErrCredentialMissing is returned when no valid token exists for the
// requested scope. It is deliberately distinct from store failures:
// callers react to it by prompting a new authorization run, not by
// retrying.
var ErrCredentialMissing = errors.New("credential missing")

// ErrTenantNotFound is returned when an identifier matches no
// registered tenant. Handlers translate it into a 404 rather than
// silently substituting another tenant's data.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrRegistryEmpty is returned by operations that require at least one
// registered tenant, such as switching the default.
var ErrRegistryEmpty = errors.New("tenant registry is empty")
