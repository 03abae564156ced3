// Package tenant is the row-level isolation kernel. Every repository query
// in the system goes through a Scope; handlers obtain one per request and
// it never outlives the request.
package tenant

import (
	"net/http"

	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/auth"
)

// Header names the fallback tenant header for principals whose token does
// not carry a tenant claim (device integrations).
const Header = "X-Athens-Tenant-ID"

// Scope is the mandatory tenant binding passed alongside every repository
// call. The zero value is invalid on purpose.
type Scope struct {
	TenantID string
}

// Resolve extracts the tenant binding for a request: authenticated claims
// first, the X-Athens-Tenant-ID header second.
func Resolve(r *http.Request) (Scope, error) {
	if c := auth.FromContext(r.Context()); c.TenantID != "" {
		return Scope{TenantID: c.TenantID}, nil
	}
	if h := r.Header.Get(Header); h != "" {
		return Scope{TenantID: h}, nil
	}
	return Scope{}, apperr.TenantContextMissing()
}

// Scoped attaches the tenant predicate to a query.
func (s Scope) Scoped(q *gorm.DB) *gorm.DB {
	return q.Where("tenant_id = ?", s.TenantID)
}

// ForTenant is the free-function form of Scoped for call sites that hold a
// raw tenant id.
func ForTenant(q *gorm.DB, tenantID string) *gorm.DB {
	return q.Where("tenant_id = ?", tenantID)
}

// GuardImmutable rejects any attempt to move a row between tenants.
func GuardImmutable(current, incoming string) error {
	if incoming != "" && incoming != current {
		return apperr.TenantImmutable()
	}
	return nil
}
