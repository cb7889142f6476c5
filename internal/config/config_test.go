package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHGRID_TOKEN_SECRET", "super-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, IdentityModeDev, cfg.IdentityMode)
	assert.Equal(t, "authgrid", cfg.Token.Issuer)
	assert.Equal(t, "authgrid-clients", cfg.Token.Audience)
	assert.Equal(t, 60*time.Minute, cfg.Token.TTL)
	assert.Equal(t, 2*time.Minute, cfg.Token.Leeway)
	assert.Equal(t, "Okta", cfg.OIDC.ProviderName)
	assert.Equal(t, "dev-user-sub", cfg.Dev.Subject)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTHGRID_TOKEN_SECRET", "super-secret")
	t.Setenv("AUTHGRID_HTTP_ADDR", ":9090")
	t.Setenv("AUTHGRID_TOKEN_TTL", "30m")
	t.Setenv("AUTHGRID_IDENTITY_MODE", "oidc")
	t.Setenv("AUTHGRID_OIDC_CLIENT_ID", "client")
	t.Setenv("AUTHGRID_OIDC_CLIENT_SECRET", "secret")
	t.Setenv("AUTHGRID_OIDC_ISSUER_URL", "https://idp.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.Token.TTL)
	assert.Equal(t, IdentityModeOIDC, cfg.IdentityMode)
}

func TestLoadInvalidIdentityMode(t *testing.T) {
	t.Setenv("AUTHGRID_TOKEN_SECRET", "super-secret")
	t.Setenv("AUTHGRID_IDENTITY_MODE", "saml")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOIDCModeRequiresClient(t *testing.T) {
	t.Setenv("AUTHGRID_TOKEN_SECRET", "super-secret")
	t.Setenv("AUTHGRID_IDENTITY_MODE", "oidc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTHGRID_OIDC_CLIENT_ID")
}
