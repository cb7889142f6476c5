package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provisioner creates-or-finds a local user for an authenticated external
// identity, audits the login, and issues a bearer token.
type Provisioner struct {
	store    Store
	recorder EventRecorder
	tokens   *TokenCodec
	now      func() time.Time
}

// ProvisionerOption configures Provisioner behavior.
type ProvisionerOption func(*Provisioner)

// WithProvisionerClock overrides the time source (useful for tests).
func WithProvisionerClock(fn func() time.Time) ProvisionerOption {
	return func(p *Provisioner) {
		if fn != nil {
			p.now = fn
		}
	}
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(store Store, recorder EventRecorder, tokens *TokenCodec, opts ...ProvisionerOption) (*Provisioner, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	if recorder == nil {
		return nil, errors.New("rbac: event recorder is required")
	}
	if tokens == nil {
		return nil, errors.New("rbac: token codec is required")
	}
	p := &Provisioner{store: store, recorder: recorder, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProvisionResult carries everything a caller needs after a login: the local
// user, its resolved role and permissions, and a signed token.
type ProvisionResult struct {
	User        User
	RoleName    string
	Permissions []string
	Token       string
	ExpiresAt   time.Time
	Created     bool
}

// ProvisionOnLogin finds or creates the user for (provider, externalID),
// writes exactly one LoginSuccess event, and issues a token. User creation is
// idempotent per identity; the login audit deliberately is not — every call
// is recorded.
func (p *Provisioner) ProvisionOnLogin(ctx context.Context, externalID, email, provider string) (ProvisionResult, error) {
	externalID = strings.TrimSpace(externalID)
	provider = strings.TrimSpace(provider)
	email = strings.TrimSpace(strings.ToLower(email))
	if externalID == "" || provider == "" {
		return ProvisionResult{}, fmt.Errorf("%w: external id and provider are required", ErrInvalidInput)
	}

	users := p.store.Users(ctx)
	created := false
	user, err := users.FindByExternal(ctx, provider, externalID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		user, err = p.createUser(ctx, externalID, email, provider)
		if err != nil {
			if !errors.Is(err, ErrConflict) {
				return ProvisionResult{}, err
			}
			// Lost the first-login race: someone else provisioned this
			// identity between our lookup and insert.
			user, err = users.FindByExternal(ctx, provider, externalID)
			if err != nil {
				return ProvisionResult{}, fmt.Errorf("refetch after conflict: %w", err)
			}
		} else {
			created = true
		}
	default:
		return ProvisionResult{}, err
	}

	roles := p.store.Roles(ctx)
	role, err := roles.Find(ctx, user.RoleID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("load role %s: %w", user.RoleID, err)
	}
	claims, err := roles.ClaimsForRole(ctx, role.ID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("load claims for role %s: %w", role.ID, err)
	}

	// The login event is written strictly after the user row exists. A
	// failed audit write fails the whole login; it is never dropped.
	if _, err := p.recorder.Record(ctx, EventLoginSuccess, user.ID, user.ID, "provider="+provider); err != nil {
		return ProvisionResult{}, fmt.Errorf("record login event: %w", err)
	}

	perms := permissionValues(claims)
	token, expiresAt, err := p.tokens.Issue(user.ID, user.Email, role.Name, perms)
	if err != nil {
		return ProvisionResult{}, err
	}

	return ProvisionResult{
		User:        *user,
		RoleName:    role.Name,
		Permissions: perms,
		Token:       token,
		ExpiresAt:   expiresAt,
		Created:     created,
	}, nil
}

func (p *Provisioner) createUser(ctx context.Context, externalID, email, provider string) (*User, error) {
	basic, err := p.store.Roles(ctx).FindByName(ctx, RoleBasicUser)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: role %q is not seeded", ErrSeedRoleMissing, RoleBasicUser)
		}
		return nil, err
	}
	now := p.now().UTC()
	user := &User{
		ID:         uuid.NewString(),
		Provider:   provider,
		ExternalID: externalID,
		Email:      email,
		RoleID:     basic.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
