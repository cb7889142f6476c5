package rbac

import "time"

// User is a local account provisioned on first federated login. The
// (Provider, ExternalID) pair is unique; the record is created exactly once
// per external identity and never deleted.
type User struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email"`
	RoleID     string    `json:"role_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Role groups permission claims. Roles are seeded, not created at runtime.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Claim is a permission grant unit attached to roles (many-to-many).
// Type is conventionally "permissions"; Value is a dotted permission name.
type Claim struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SecurityEvent is an immutable audit record. Once appended it is never
// mutated or deleted.
type SecurityEvent struct {
	ID             string    `json:"id"`
	EventType      string    `json:"event_type"`
	AuthorUserID   string    `json:"author_user_id"`
	AffectedUserID string    `json:"affected_user_id"`
	OccurredUTC    time.Time `json:"occurred_utc"`
	Details        string    `json:"details"`
}
