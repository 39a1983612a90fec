package model

import "time"

// TokenScopeGlobal marks records whose credential is not bound to any
// tenant. Page and linked-account tokens carry this scope because the
// upstream platform issues them against globally unique account ids.
const TokenScopeGlobal = "global"

// TokenRecord is the serialized form of a stored bearer credential.
// Records are written to the durable store as JSON and always replaced
// wholesale; there is no partial update path.
//
// Fields:
//
//	Token     – the bearer token string issued by the upstream platform.
//	ExpiresAt – absolute expiry of the credential, or nil when the
//	            upstream never expires it (page/linked-account tokens).
//	IssuedAt  – when this record was written.
//	Scope     – tenant alias for user tokens, TokenScopeGlobal otherwise.
type TokenRecord struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at"`
	IssuedAt  time.Time  `json:"issued_at"`
	Scope     string     `json:"scope"`
}

// Expired reports whether the record's logical expiry has passed at the
// given instant. Records without an expiry never expire.
func (r TokenRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
