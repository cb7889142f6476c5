package rbac

import (
	"context"
	"testing"
)

func TestAssignRoleUserNotFound(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	ra, err := NewRoleAssigner(store)
	if err != nil {
		t.Fatalf("NewRoleAssigner: %v", err)
	}

	result, err := ra.AssignRole(context.Background(), "no-such-user", SeedRoleAuthObserverID)
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure outcome")
	}
	if result.Message != "User not found" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestAssignRoleRoleNotFound(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	seedUser(t, store, "u1", SeedRoleBasicUserID)
	ra, _ := NewRoleAssigner(store)

	result, err := ra.AssignRole(context.Background(), "u1", "no-such-role")
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure outcome")
	}
	if result.Message != "Role not found" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if result.OldRoleName != RoleBasicUser {
		t.Fatalf("expected old role to be resolved, got %q", result.OldRoleName)
	}
}

func TestAssignRoleSuccess(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	seedUser(t, store, "u1", SeedRoleBasicUserID)
	ra, _ := NewRoleAssigner(store)
	ctx := context.Background()

	result, err := ra.AssignRole(ctx, "u1", SeedRoleSecurityAuditorID)
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Message != "Role changed from BasicUser to SecurityAuditor" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if result.OldRoleName != RoleBasicUser || result.NewRoleName != RoleSecurityAuditor {
		t.Fatalf("unexpected role names: %q -> %q", result.OldRoleName, result.NewRoleName)
	}

	// The change is visible to the next permission check.
	authz, _ := NewAuthorizer(store)
	granted, err := authz.HasPermission(ctx, "u1", PermRoleChanges)
	if err != nil || !granted {
		t.Fatalf("expected new role to grant %s: (%v, %v)", PermRoleChanges, granted, err)
	}
}

func TestAssignRoleUnknownCurrentRole(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	seedUser(t, store, "u1", "dangling-role-id")
	ra, _ := NewRoleAssigner(store)

	result, err := ra.AssignRole(context.Background(), "u1", SeedRoleBasicUserID)
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.OldRoleName != "Unknown" {
		t.Fatalf("expected Unknown old role, got %q", result.OldRoleName)
	}
	if result.Message != "Role changed from Unknown to BasicUser" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestAssignRoleBlankInput(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	ra, _ := NewRoleAssigner(store)

	if _, err := ra.AssignRole(context.Background(), "", SeedRoleBasicUserID); err == nil {
		t.Fatalf("expected error for blank user id")
	}
	if _, err := ra.AssignRole(context.Background(), "u1", "  "); err == nil {
		t.Fatalf("expected error for blank role id")
	}
}
