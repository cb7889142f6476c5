package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Messages surfaced to callers when a role assignment cannot proceed.
const (
	msgUserNotFound = "User not found"
	msgRoleNotFound = "Role not found"
)

// roleNameUnknown is reported as the previous role when the user's current
// role id does not resolve.
const roleNameUnknown = "Unknown"

// RoleAssigner validates and performs role changes. It does not write the
// RoleAssigned audit event; the orchestrating caller does that after success,
// with its own identity as the author.
type RoleAssigner struct {
	store Store
}

// NewRoleAssigner constructs a RoleAssigner.
func NewRoleAssigner(store Store) (*RoleAssigner, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	return &RoleAssigner{store: store}, nil
}

// AssignRoleResult reports the outcome of a role change. Before/after role
// names are returned for the caller's audit write.
type AssignRoleResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OldRoleName string `json:"old_role_name"`
	NewRoleName string `json:"new_role_name"`
}

// AssignRole moves the user onto the given role. Unknown user or role is a
// business outcome ({Success:false, Message}), not an error; only store
// failures return a non-nil error.
func (ra *RoleAssigner) AssignRole(ctx context.Context, userID, roleID string) (AssignRoleResult, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return AssignRoleResult{}, fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}

	users := ra.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AssignRoleResult{Message: msgUserNotFound}, nil
		}
		return AssignRoleResult{}, err
	}

	roles := ra.store.Roles(ctx)
	oldRoleName := roleNameUnknown
	if oldRole, err := roles.Find(ctx, user.RoleID); err == nil {
		oldRoleName = oldRole.Name
	} else if !errors.Is(err, ErrNotFound) {
		return AssignRoleResult{}, err
	}

	newRole, err := roles.Find(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AssignRoleResult{Message: msgRoleNotFound, OldRoleName: oldRoleName}, nil
		}
		return AssignRoleResult{}, err
	}

	if err := users.UpdateRole(ctx, user.ID, newRole.ID); err != nil {
		return AssignRoleResult{}, err
	}

	return AssignRoleResult{
		Success:     true,
		Message:     fmt.Sprintf("Role changed from %s to %s", oldRoleName, newRole.Name),
		OldRoleName: oldRoleName,
		NewRoleName: newRole.Name,
	}, nil
}
