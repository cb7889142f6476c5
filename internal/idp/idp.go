// Package idp defines the port to the federated identity source. The core
// never performs the federation handshake itself; it only consumes the
// authenticated external identity an adapter hands back.
package idp

import "context"

// Identity is an authenticated external identity: everything provisioning
// needs and nothing more.
type Identity struct {
	Subject  string
	Email    string
	Provider string
}

// Provider initiates and completes a federated login flow.
type Provider interface {
	// Name is the provider tag recorded in audit details (e.g. "Okta").
	Name() string

	// Begin starts the login flow and returns the provider auth URL plus an
	// opaque state and nonce the caller must round-trip.
	Begin(ctx context.Context) (authURL, state, nonce string, err error)

	// Exchange completes the flow, verifying the nonce, and returns the
	// authenticated identity.
	Exchange(ctx context.Context, code, nonce string) (Identity, error)
}
