package rbac

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL    = 60 * time.Minute
	defaultTokenLeeway = 2 * time.Minute
)

// Token validation failures, each distinct so callers can tell an expired
// credential from a forged one.
var (
	ErrTokenMalformed   = errors.New("rbac: token malformed")
	ErrTokenSignature   = errors.New("rbac: token signature invalid")
	ErrTokenExpired     = errors.New("rbac: token expired")
	ErrIssuerMismatch   = errors.New("rbac: token issuer mismatch")
	ErrAudienceMismatch = errors.New("rbac: token audience mismatch")
)

// TokenConfig carries the signing material and token policy. It is injected
// explicitly; the codec performs no ambient configuration lookup.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// TokenClaims is the self-contained authorization state carried by a bearer
// token. Permissions are deduplicated at issue time.
type TokenClaims struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenCodec issues and validates HS256-signed bearer tokens.
type TokenCodec struct {
	cfg TokenConfig
	now func() time.Time
}

// TokenOption configures TokenCodec behavior.
type TokenOption func(*TokenCodec)

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewTokenCodec constructs a TokenCodec from explicit configuration.
func NewTokenCodec(cfg TokenConfig, opts ...TokenOption) (*TokenCodec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("rbac: token secret is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("rbac: token issuer and audience are required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = defaultTokenLeeway
	}
	codec := &TokenCodec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(codec)
	}
	return codec, nil
}

// Issue signs a token carrying the user's identity, role, and deduplicated
// permission set.
func (c *TokenCodec) Issue(userID, email, roleName string, permissions []string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.cfg.TTL)
	claims := TokenClaims{
		UID:         userID,
		Email:       email,
		Role:        roleName,
		Permissions: dedupeStrings(permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies signature, expiry (with leeway), issuer, and audience,
// and returns the embedded claims.
func (c *TokenCodec) Validate(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenSignature
		}
		return []byte(c.cfg.Secret), nil
	},
		jwt.WithLeeway(c.cfg.Leeway),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.UID) == "" {
		claims.UID = claims.Subject
	}
	if strings.TrimSpace(claims.UID) == "" {
		return nil, ErrTokenMalformed
	}
	claims.Permissions = dedupeStrings(claims.Permissions)
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	default:
		return ErrTokenMalformed
	}
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
