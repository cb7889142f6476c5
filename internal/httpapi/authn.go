package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"authgrid.org/internal/obs"
	"authgrid.org/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/callback",
}

// withAuth rejects requests without a valid bearer token before any handler
// runs, and stores the resulting principal in the request context. Token
// failures are authentication errors, never an empty permission set.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, tokenErrorMessage(err))
			return
		}

		ctx := rbac.ContextWithPrincipal(r.Context(), rbac.NewPrincipal(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, rbac.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, rbac.ErrTokenSignature):
		return "token signature invalid"
	case errors.Is(err, rbac.ErrIssuerMismatch):
		return "token issuer mismatch"
	case errors.Is(err, rbac.ErrAudienceMismatch):
		return "token audience mismatch"
	default:
		return "token malformed"
	}
}

// caller returns the authenticated principal or rejects with 401.
func (a *API) caller(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return rbac.Principal{}, false
	}
	return principal, true
}

// requireLivePermission gates an operation on the caller's current role
// state rather than the token snapshot, so revoked permissions take effect
// immediately.
func (a *API) requireLivePermission(w http.ResponseWriter, r *http.Request, principal rbac.Principal, perm string) bool {
	granted, err := a.authorizer.HasPermission(r.Context(), principal.UserID, perm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return false
	}
	if !granted {
		obs.ObserveAuthzDenied(perm)
		writeError(w, http.StatusForbidden, "missing permission "+perm)
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
