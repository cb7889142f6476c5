package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"authgrid.org/internal/rbac"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements rbac.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ rbac.Store = (*Store)(nil)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Users(ctx context.Context) rbac.UserStore   { return &userStore{db: s.db} }
func (s *Store) Roles(ctx context.Context) rbac.RoleStore   { return &roleStore{db: s.db} }
func (s *Store) Events(ctx context.Context) rbac.EventStore { return &eventStore{db: s.db} }

// mapConstraintErr translates driver constraint violations into the rbac
// sentinel errors the engines branch on.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return rbac.ErrConflict
		case pgErrForeignKeyViolation:
			return rbac.ErrInvalidInput
		}
	}
	return err
}
