// Package requestctx carries the authenticated caller through request contexts.
package requestctx

import (
	"context"
	"slices"
)

// RoleAdmin grants access to account management and every character sheet.
const RoleAdmin = "admin"

// Principal identifies the authenticated account behind a request.
type Principal struct {
	AccountID string
	Roles     []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// IsAdmin reports whether the principal may act on any account's data.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

type principalContextKey struct{}

type serviceNameContextKey struct{}

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal stored in context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || principal.AccountID == "" {
		return Principal{}, false
	}
	return principal, true
}

// UserIDFromContext returns the authenticated account id, or "".
func UserIDFromContext(ctx context.Context) string {
	principal, _ := PrincipalFromContext(ctx)
	return principal.AccountID
}

// WithServiceName records the calling front-end (X-Service-Name).
func WithServiceName(ctx context.Context, service string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, serviceNameContextKey{}, service)
}

// ServiceNameFromContext returns the calling front-end, or "".
func ServiceNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(serviceNameContextKey{}).(string)
	return value
}
