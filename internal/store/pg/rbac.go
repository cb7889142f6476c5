package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authgrid.org/internal/rbac"
)

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *rbac.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, provider, external_id, email, role_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.Provider, u.ExternalID, u.Email, u.RoleID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*rbac.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, provider, external_id, email, role_id, created_at, updated_at
		from users where id = $1
	`, id)
	return scanUser(row)
}

func (s *userStore) FindByExternal(ctx context.Context, provider, externalID string) (*rbac.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, provider, external_id, email, role_id, created_at, updated_at
		from users where provider = $1 and external_id = $2
	`, provider, externalID)
	return scanUser(row)
}

func (s *userStore) UpdateRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set role_id = $2, updated_at = now() where id = $1
	`, userID, roleID)
	if err != nil {
		return mapConstraintErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *userStore) List(ctx context.Context) ([]*rbac.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, provider, external_id, email, role_id, created_at, updated_at
		from users order by created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*rbac.User
	for rows.Next() {
		var u rbac.User
		if err := rows.Scan(&u.ID, &u.Provider, &u.ExternalID, &u.Email, &u.RoleID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*rbac.User, error) {
	var u rbac.User
	if err := row.Scan(&u.ID, &u.Provider, &u.ExternalID, &u.Email, &u.RoleID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Find(ctx context.Context, id string) (*rbac.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at from roles where id = $1
	`, id)
	return scanRole(row)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*rbac.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at from roles where name = $1
	`, name)
	return scanRole(row)
}

func (s *roleStore) List(ctx context.Context) ([]*rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at, updated_at from roles order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		var role rbac.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (s *roleStore) ClaimsForRole(ctx context.Context, roleID string) ([]rbac.Claim, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists(select 1 from roles where id = $1)`, roleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, rbac.ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, `
		select c.id, c.type, c.value
		from claims c
		join role_claims rc on rc.claim_id = c.id
		where rc.role_id = $1
		order by c.value
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []rbac.Claim
	for rows.Next() {
		var c rbac.Claim
		if err := rows.Scan(&c.ID, &c.Type, &c.Value); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func scanRole(row *sql.Row) (*rbac.Role, error) {
	var role rbac.Role
	var description sql.NullString
	if err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	role.Description = description.String
	return &role, nil
}
