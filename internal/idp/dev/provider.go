// Package dev provides a config-driven idp.Provider for local development.
// It short-circuits federation: Begin points back at our own callback and
// Exchange returns the configured identity unconditionally.
package dev

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"authgrid.org/internal/idp"
)

// Config fixes the identity returned by the provider.
type Config struct {
	Subject  string
	Email    string
	Provider string
}

// Provider implements idp.Provider for development.
type Provider struct {
	identity idp.Identity
}

var _ idp.Provider = (*Provider)(nil)

// New constructs a dev provider from Config.
func New(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev idp: subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev idp: email is required")
	}
	name := cfg.Provider
	if name == "" {
		name = "Dev"
	}
	return &Provider{identity: idp.Identity{
		Subject:  cfg.Subject,
		Email:    cfg.Email,
		Provider: name,
	}}, nil
}

func (p *Provider) Name() string { return p.identity.Provider }

// Begin returns our own callback URL with locally generated state and nonce.
func (p *Provider) Begin(_ context.Context) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return "/v1/auth/callback?code=dev&state=" + state, state, nonce, nil
}

// Exchange ignores the code and returns the configured identity.
func (p *Provider) Exchange(_ context.Context, _, _ string) (idp.Identity, error) {
	return p.identity, nil
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
