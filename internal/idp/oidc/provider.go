// Package oidc adapts an OIDC provider (Okta, Google, ...) to the idp port.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"authgrid.org/internal/idp"
)

// Config holds the OIDC client settings.
type Config struct {
	ProviderName string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	Scope        string
	HTTPClient   *http.Client // optional
}

// Provider implements idp.Provider via the authorization-code flow.
type Provider struct {
	name     string
	config   *oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

var _ idp.Provider = (*Provider)(nil)

// New performs OIDC discovery against the issuer and builds the adapter.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("oidc: client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("oidc: redirect URL is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("oidc: issuer URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	op, err := gooidc.NewProvider(ctx, strings.TrimSuffix(cfg.IssuerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	name := cfg.ProviderName
	if name == "" {
		name = "OIDC"
	}
	return &Provider{
		name:     name,
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

func (p *Provider) Name() string { return p.name }

// Begin returns the provider auth URL with fresh state and nonce.
func (p *Provider) Begin(_ context.Context) (string, string, string, error) {
	state, err := randomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)
	return authURL, state, nonce, nil
}

// Exchange swaps the code for tokens, verifies the ID token and nonce, and
// extracts the external identity.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (idp.Identity, error) {
	if code == "" {
		return idp.Identity{}, errors.New("oidc: authorization code is required")
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return idp.Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return idp.Identity{}, errors.New("oidc: no id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return idp.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return idp.Identity{}, errors.New("oidc: nonce mismatch")
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return idp.Identity{}, fmt.Errorf("decode id_token claims: %w", err)
	}
	if idToken.Subject == "" {
		return idp.Identity{}, errors.New("oidc: id_token missing subject")
	}
	return idp.Identity{
		Subject:  idToken.Subject,
		Email:    claims.Email,
		Provider: p.name,
	}, nil
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
