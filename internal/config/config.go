package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// IdentityMode selects where authenticated external identities come from.
type IdentityMode string

const (
	// IdentityModeOIDC federates logins through an OIDC provider.
	IdentityModeOIDC IdentityMode = "oidc"
	// IdentityModeDev short-circuits federation with a configured identity
	// (development only).
	IdentityModeDev IdentityMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for IdentityMode.
func (m *IdentityMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "dev":
		*m = IdentityMode(v)
		return nil
	default:
		return fmt.Errorf("invalid identity mode: %q (valid options: oidc, dev)", v)
	}
}

// TokenConfig holds the bearer-token signing policy.
type TokenConfig struct {
	Secret   string        `env:"SECRET,required"`
	Issuer   string        `env:"ISSUER"   envDefault:"authgrid"`
	Audience string        `env:"AUDIENCE" envDefault:"authgrid-clients"`
	TTL      time.Duration `env:"TTL"      envDefault:"60m"`
	Leeway   time.Duration `env:"LEEWAY"   envDefault:"2m"`
}

// OIDCConfig configures the federated identity provider.
type OIDCConfig struct {
	ProviderName string `env:"PROVIDER_NAME" envDefault:"Okta"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL" envDefault:"http://localhost:8080/v1/auth/callback"`
	IssuerURL    string `env:"ISSUER_URL"`
	Scope        string `env:"SCOPE" envDefault:"openid profile email"`
}

// DevIdentityConfig is the fixed identity returned in dev mode.
type DevIdentityConfig struct {
	Subject  string `env:"SUBJECT"  envDefault:"dev-user-sub"`
	Email    string `env:"EMAIL"    envDefault:"dev@example.com"`
	Provider string `env:"PROVIDER" envDefault:"Dev"`
}

// Config is the complete service configuration, parsed from the environment.
// It is constructed once in main and injected explicitly; nothing reads
// ambient configuration after startup.
type Config struct {
	HTTPAddr string `env:"AUTHGRID_HTTP_ADDR" envDefault:":8080"`
	PGDSN    string `env:"AUTHGRID_PG_DSN"`

	IdentityMode IdentityMode `env:"AUTHGRID_IDENTITY_MODE" envDefault:"dev"`

	Token TokenConfig       `envPrefix:"AUTHGRID_TOKEN_"`
	OIDC  OIDCConfig        `envPrefix:"AUTHGRID_OIDC_"`
	Dev   DevIdentityConfig `envPrefix:"AUTHGRID_DEV_"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.IdentityMode == IdentityModeOIDC {
		if c.OIDC.ClientID == "" || c.OIDC.ClientSecret == "" || c.OIDC.IssuerURL == "" {
			return fmt.Errorf("identity mode oidc requires AUTHGRID_OIDC_CLIENT_ID, AUTHGRID_OIDC_CLIENT_SECRET, and AUTHGRID_OIDC_ISSUER_URL")
		}
	}
	return nil
}
