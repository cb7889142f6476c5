package rbac

import (
	"context"
	"errors"
	"strings"
)

// Authorizer answers permission questions from the current role/claim graph.
// It never caches: a role change takes effect on the next check.
type Authorizer struct {
	store Store
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(store Store) (*Authorizer, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	return &Authorizer{store: store}, nil
}

// HasPermission reports whether the user's role owns a claim of type
// "permissions" whose value equals perm. Unknown users and dangling roles
// fail closed (false, nil); store failures propagate.
func (a *Authorizer) HasPermission(ctx context.Context, userID, perm string) (bool, error) {
	userID = strings.TrimSpace(userID)
	perm = strings.TrimSpace(perm)
	if userID == "" || perm == "" {
		return false, nil
	}
	user, err := a.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	claims, err := a.store.Roles(ctx).ClaimsForRole(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, c := range claims {
		if c.Type == ClaimTypePermissions && c.Value == perm {
			return true, nil
		}
	}
	return false, nil
}

// CanViewAuthEvents reports whether the user may read authentication events.
func (a *Authorizer) CanViewAuthEvents(ctx context.Context, userID string) (bool, error) {
	return a.HasPermission(ctx, userID, PermViewAuthEvents)
}

// CanViewRoleChanges reports whether the user may see and perform role changes.
func (a *Authorizer) CanViewRoleChanges(ctx context.Context, userID string) (bool, error) {
	return a.HasPermission(ctx, userID, PermRoleChanges)
}

// PermissionsForUser resolves the deduplicated permission values on the
// user's role, suitable for embedding into a token.
func (a *Authorizer) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	user, err := a.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	claims, err := a.store.Roles(ctx).ClaimsForRole(ctx, user.RoleID)
	if err != nil {
		return nil, err
	}
	return permissionValues(claims), nil
}

func permissionValues(claims []Claim) []string {
	seen := make(map[string]struct{}, len(claims))
	var out []string
	for _, c := range claims {
		if c.Type != ClaimTypePermissions {
			continue
		}
		if _, ok := seen[c.Value]; ok {
			continue
		}
		seen[c.Value] = struct{}{}
		out = append(out, c.Value)
	}
	return out
}
