// Package tenancy resolves the tenant behind a session, its module
// entitlements and the upstream connection it is served from.
package tenancy

import (
	"context"
	"time"
)

// Tenant is one customer organisation and its upstream database.
type Tenant struct {
	ID          int64
	Name        string
	Active      bool
	UpstreamURL string
	UpstreamDB  string
	UpstreamUID int64
	APIKey      string
	UpdatedAt   time.Time
}

type tenantContextKey struct{}

// ContextWithTenant stores the resolved tenant in ctx.
func ContextWithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// TenantFromContext returns the tenant stored by RequireModule.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return t, ok
}
