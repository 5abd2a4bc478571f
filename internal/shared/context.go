package shared

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Tenant identifies the organisation every read and write is scoped by.
// It is carried explicitly on the request context instead of living in a
// process-wide singleton.
type Tenant struct {
	ID   uuid.UUID
	Name string
}

type tenantContextKey struct{}

// ErrTenantMissing indicates a request reached the domain layer without a tenant.
var ErrTenantMissing = errors.New("shared: tenant missing from context")

// ContextWithTenant stores the tenant in context.
func ContextWithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext extracts the tenant from context.
func TenantFromContext(ctx context.Context) (Tenant, error) {
	tenant, ok := ctx.Value(tenantContextKey{}).(Tenant)
	if !ok || tenant.ID == uuid.Nil {
		return Tenant{}, ErrTenantMissing
	}
	return tenant, nil
}
