package rbac

import "context"

// Store describes persistence operations required by the RBAC core.
// Referential integrity (user.role_id -> roles.id) and uniqueness of role
// names and (provider, external_id) pairs are the store's responsibility.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Events(ctx context.Context) EventStore
}

// UserStore manages provisioned users.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByExternal(ctx context.Context, provider, externalID string) (*User, error)
	UpdateRole(ctx context.Context, userID, roleID string) error
	List(ctx context.Context) ([]*User, error)
}

// RoleStore reads the seeded role/claim graph.
type RoleStore interface {
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	ClaimsForRole(ctx context.Context, roleID string) ([]Claim, error)
}

// EventFilter narrows an event listing. Empty TypePrefixes means no type
// restriction.
type EventFilter struct {
	TypePrefixes []string
}

// EventStore appends and lists immutable security events. List always
// returns events ordered by occurred_utc descending with insertion order as
// the tiebreak.
type EventStore interface {
	Append(ctx context.Context, ev *SecurityEvent) error
	List(ctx context.Context, filter EventFilter) ([]SecurityEvent, error)
}

// EventRecorder is the write half of the audit ledger as seen by the
// provisioning engine.
type EventRecorder interface {
	Record(ctx context.Context, eventType, authorUserID, affectedUserID, details string) (SecurityEvent, error)
}
