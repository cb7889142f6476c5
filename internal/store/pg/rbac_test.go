package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"authgrid.org/internal/rbac"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRows(u rbac.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "provider", "external_id", "email", "role_id", "created_at", "updated_at"}).
		AddRow(u.ID, u.Provider, u.ExternalID, u.Email, u.RoleID, u.CreatedAt, u.UpdatedAt)
}

func TestUserStoreFindByExternal(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	want := rbac.User{
		ID: "u1", Provider: "Okta", ExternalID: "sub-1",
		Email: "a@example.com", RoleID: "r1", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery("select id, provider, external_id, email, role_id, created_at, updated_at.*from users where provider = \\$1 and external_id = \\$2").
		WithArgs("Okta", "sub-1").
		WillReturnRows(userRows(want))

	got, err := store.Users(context.Background()).FindByExternal(context.Background(), "Okta", "sub-1")
	if err != nil {
		t.Fatalf("FindByExternal: %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserStoreFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from users where id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider", "external_id", "email", "role_id", "created_at", "updated_at"}))

	_, err := store.Users(context.Background()).Find(context.Background(), "missing")
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected rbac.ErrNotFound, got %v", err)
	}
}

func TestUserStoreCreateConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into users").
		WithArgs("u1", "Okta", "sub-1", "a@example.com", "r1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Users(context.Background()).Create(context.Background(), &rbac.User{
		ID: "u1", Provider: "Okta", ExternalID: "sub-1", Email: "a@example.com", RoleID: "r1",
	})
	if !errors.Is(err, rbac.ErrConflict) {
		t.Fatalf("expected rbac.ErrConflict for unique violation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserStoreCreateDanglingRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into users").
		WithArgs("u1", "Okta", "sub-1", "a@example.com", "no-such-role", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := store.Users(context.Background()).Create(context.Background(), &rbac.User{
		ID: "u1", Provider: "Okta", ExternalID: "sub-1", Email: "a@example.com", RoleID: "no-such-role",
	})
	if !errors.Is(err, rbac.ErrInvalidInput) {
		t.Fatalf("expected rbac.ErrInvalidInput for FK violation, got %v", err)
	}
}

func TestUserStoreUpdateRoleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update users set role_id = \\$2").
		WithArgs("missing", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users(context.Background()).UpdateRole(context.Background(), "missing", "r1")
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected rbac.ErrNotFound, got %v", err)
	}
}

func TestRoleStoreFindByName(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, name, description, created_at, updated_at from roles where name = \\$1").
		WithArgs(rbac.RoleBasicUser).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow("r1", rbac.RoleBasicUser, nil, now, now))

	role, err := store.Roles(context.Background()).FindByName(context.Background(), rbac.RoleBasicUser)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if role.ID != "r1" || role.Name != rbac.RoleBasicUser {
		t.Fatalf("unexpected role: %+v", role)
	}
	if role.Description != "" {
		t.Fatalf("null description should scan to empty string, got %q", role.Description)
	}
}

func TestRoleStoreClaimsForRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select exists").
		WithArgs("r3").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("select c.id, c.type, c.value.*join role_claims rc").
		WithArgs("r3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "value"}).
			AddRow("c1", rbac.ClaimTypePermissions, rbac.PermRoleChanges).
			AddRow("c2", rbac.ClaimTypePermissions, rbac.PermViewAuthEvents))

	claims, err := store.Roles(context.Background()).ClaimsForRole(context.Background(), "r3")
	if err != nil {
		t.Fatalf("ClaimsForRole: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
}

func TestRoleStoreClaimsForUnknownRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select exists").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := store.Roles(context.Background()).ClaimsForRole(context.Background(), "missing")
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected rbac.ErrNotFound, got %v", err)
	}
}
