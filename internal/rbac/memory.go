package rbac

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and dev mode. It enforces
// the same uniqueness rules as the SQL schema: role names and
// (provider, external_id) pairs are unique.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*User
	byExternal map[string]string
	roles      map[string]*Role
	roleClaims map[string][]Claim
	events     []SecurityEvent
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*User),
		byExternal: make(map[string]string),
		roles:      make(map[string]*Role),
		roleClaims: make(map[string][]Claim),
	}
}

func (m *MemoryStore) Users(ctx context.Context) UserStore   { return memUsers{m} }
func (m *MemoryStore) Roles(ctx context.Context) RoleStore   { return memRoles{m} }
func (m *MemoryStore) Events(ctx context.Context) EventStore { return memEvents{m} }

// Deterministic seed identifiers, mirrored by the SQL seed files.
const (
	SeedRoleBasicUserID       = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	SeedRoleAuthObserverID    = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	SeedRoleSecurityAuditorID = "cccccccc-cccc-cccc-cccc-cccccccccccc"
	SeedClaimViewAuthEventsID = "dddddddd-dddd-dddd-dddd-dddddddddddd"
	SeedClaimRoleChangesID    = "eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee"
)

// Seed installs the canonical roles and claims: BasicUser (no claims),
// AuthObserver (ViewAuthEvents), SecurityAuditor (ViewAuthEvents +
// RoleChanges).
func (m *MemoryStore) Seed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	add := func(id, name, description string) {
		m.roles[id] = &Role{ID: id, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	}
	add(SeedRoleBasicUserID, RoleBasicUser, "Default role")
	add(SeedRoleAuthObserverID, RoleAuthObserver, "Can view auth events")
	add(SeedRoleSecurityAuditorID, RoleSecurityAuditor, "Can audit role changes")

	viewAuth := Claim{ID: SeedClaimViewAuthEventsID, Type: ClaimTypePermissions, Value: PermViewAuthEvents}
	roleChanges := Claim{ID: SeedClaimRoleChangesID, Type: ClaimTypePermissions, Value: PermRoleChanges}
	m.roleClaims[SeedRoleAuthObserverID] = []Claim{viewAuth}
	m.roleClaims[SeedRoleSecurityAuditorID] = []Claim{viewAuth, roleChanges}
}

// User store ---------------------------------------------------------------

type memUsers struct{ m *MemoryStore }

func (s memUsers) Create(ctx context.Context, u *User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	key := externalKey(u.Provider, u.ExternalID)
	if _, exists := s.m.byExternal[key]; exists {
		return ErrConflict
	}
	if _, exists := s.m.users[u.ID]; exists {
		return ErrConflict
	}
	clone := *u
	s.m.users[u.ID] = &clone
	s.m.byExternal[key] = u.ID
	return nil
}

func (s memUsers) Find(ctx context.Context, id string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s memUsers) FindByExternal(ctx context.Context, provider, externalID string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.byExternal[externalKey(provider, externalID)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.m.users[id]
	return &clone, nil
}

func (s memUsers) UpdateRole(ctx context.Context, userID, roleID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RoleID = roleID
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s memUsers) List(ctx context.Context) ([]*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*User, 0, len(s.m.users))
	for _, u := range s.m.users {
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Role store ---------------------------------------------------------------

type memRoles struct{ m *MemoryStore }

func (s memRoles) Find(ctx context.Context, id string) (*Role, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	role, ok := s.m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *role
	return &clone, nil
}

func (s memRoles) FindByName(ctx context.Context, name string) (*Role, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, role := range s.m.roles {
		if role.Name == name {
			clone := *role
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s memRoles) List(ctx context.Context) ([]*Role, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*Role, 0, len(s.m.roles))
	for _, role := range s.m.roles {
		clone := *role
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memRoles) ClaimsForRole(ctx context.Context, roleID string) ([]Claim, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if _, ok := s.m.roles[roleID]; !ok {
		return nil, ErrNotFound
	}
	claims := s.m.roleClaims[roleID]
	out := make([]Claim, len(claims))
	copy(out, claims)
	return out, nil
}

// Event store --------------------------------------------------------------

type memEvents struct{ m *MemoryStore }

func (s memEvents) Append(ctx context.Context, ev *SecurityEvent) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.events = append(s.m.events, *ev)
	return nil
}

func (s memEvents) List(ctx context.Context, filter EventFilter) ([]SecurityEvent, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	// Walk in reverse so that for equal timestamps the later insertion wins,
	// matching the SQL ordering (occurred_utc desc, id desc).
	out := make([]SecurityEvent, 0, len(s.m.events))
	for i := len(s.m.events) - 1; i >= 0; i-- {
		ev := s.m.events[i]
		if matchesFilter(ev.EventType, filter) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredUTC.After(out[j].OccurredUTC) })
	return out, nil
}

func matchesFilter(eventType string, filter EventFilter) bool {
	if len(filter.TypePrefixes) == 0 {
		return true
	}
	for _, prefix := range filter.TypePrefixes {
		if strings.HasPrefix(eventType, prefix) {
			return true
		}
	}
	return false
}

func externalKey(provider, externalID string) string {
	return provider + "\x00" + externalID
}
