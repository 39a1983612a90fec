package model

import "time"

// Account types for ConnectedAccount. A "page" is discovered directly
// from the upstream account enumeration; a "linked-account" is the
// social profile attached to a page.
const (
	AccountTypePage   = "page"
	AccountTypeLinked = "linked-account"
)

// ConnectedAccount is one downstream account discovered during an
// authorization run. ExpiresAt stays nil: the upstream platform does
// not expire these for page admins.
//
// Fields:
//
//	ID           – the upstream account id.
//	Name         – display name or username.
//	Type         – AccountTypePage or AccountTypeLinked.
//	Category     – upstream page category, if reported.
//	LinkedPageID – for linked accounts, the id of the owning page.
//	ConnectedAt  – when the account was discovered.
type ConnectedAccount struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Category     string     `json:"category,omitempty"`
	LinkedPageID string     `json:"linked_page_id,omitempty"`
	ConnectedAt  time.Time  `json:"connected_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// AccountsIndex caches every downstream account known for one tenant.
// It is rebuilt and replaced wholesale each time an authorization run
// completes; it is never merged with a previous version. Invariant:
// TenantAlias equals the alias under whose key the index is stored.
type AccountsIndex struct {
	TenantAlias          string             `json:"tenant_alias"`
	Accounts             []ConnectedAccount `json:"accounts"`
	DefaultPageID        string             `json:"default_page_id,omitempty"`
	DefaultLinkedAccount string             `json:"default_linked_account_id,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at"`
}
