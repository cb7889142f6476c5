package rbac

import (
	"context"
	"sort"
	"strings"
)

// Principal is the authenticated caller as reconstructed from a validated
// bearer token. The token is the sole carrier of authorization state; no
// server-side session backs it.
type Principal struct {
	UserID      string
	Email       string
	Role        string
	Permissions map[string]struct{}
}

// NewPrincipal builds a Principal from validated token claims.
func NewPrincipal(claims *TokenClaims) Principal {
	set := make(map[string]struct{}, len(claims.Permissions))
	for _, perm := range claims.Permissions {
		set[perm] = struct{}{}
	}
	return Principal{
		UserID:      claims.UID,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: set,
	}
}

// PrincipalFromPermissions builds a Principal holding only a permission set.
func PrincipalFromPermissions(userID string, perms ...string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, perm := range perms {
		perm = strings.TrimSpace(perm)
		if perm == "" {
			continue
		}
		set[perm] = struct{}{}
	}
	return Principal{UserID: userID, Permissions: set}
}

// HasPermission reports whether the principal carries the named permission.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// PermissionList returns the permission set in sorted order.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for key := range p.Permissions {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

type ctxKey string

const principalKey ctxKey = "rbac_principal"

// ContextWithPrincipal stores the authenticated principal in the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		return Principal{}, false
	}
	return principal, true
}
