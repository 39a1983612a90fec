package model

import "time"

// Tenant describes one connected business. A deployment may broker
// several independent businesses at once; each gets its own alias and
// its own set of tenant-scoped credentials.
//
// Fields:
//
//	Alias       – short name the caller uses to address this tenant.
//	DisplayName – human readable name, if known.
//	ExternalID  – the upstream platform's business id, if known.
//	ConnectedAt – last time an authorization run completed for it.
//	IsDefault   – whether this tenant is used when callers name none.
type Tenant struct {
	Alias       string    `json:"alias"`
	DisplayName string    `json:"display_name,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	IsDefault   bool      `json:"is_default"`
}

// TenantRegistry is the single record tracking every connected tenant.
// It is read and replaced as one unit; mutations never patch individual
// fields in place. Invariant: when Tenants is non-empty, exactly one
// entry has IsDefault set and its alias equals DefaultAlias.
type TenantRegistry struct {
	Tenants      []Tenant  `json:"tenants"`
	DefaultAlias string    `json:"default_alias,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Find returns the tenant matching the given alias or external id,
// along with its position in the list. It returns -1 when nothing
// matches.
func (reg *TenantRegistry) Find(identifier string) (int, *Tenant) {
	for i := range reg.Tenants {
		t := &reg.Tenants[i]
		if t.Alias == identifier || (t.ExternalID != "" && t.ExternalID == identifier) {
			return i, t
		}
	}
	return -1, nil
}
