package rbac

import "context"

// Principal describes the resolved identity of an authenticated request: the
// user, its current role and the role's permission set at resolution time.
// It lives for a single request only; role changes take effect on the next
// request without re-authentication.
type Principal struct {
	UserID      int64
	Username    string
	Email       string
	RoleID      int64
	RoleName    string
	Permissions []string
}

// HasPermission reports whether the principal's permission set contains name
// under exact comparison.
func (p *Principal) HasPermission(name string) bool {
	for _, perm := range p.Permissions {
		if perm == name {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
