package httpapi

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"authgrid.org/internal/obs"
	"authgrid.org/internal/rbac"
)

// flowStore tracks pending login flows by state so the callback can verify
// the nonce. Entries expire after flowTTL.
type flowStore struct {
	mu      sync.Mutex
	pending map[string]flowEntry
}

type flowEntry struct {
	nonce   string
	started time.Time
}

const flowTTL = 10 * time.Minute

func newFlowStore() *flowStore {
	return &flowStore{pending: make(map[string]flowEntry)}
}

func (f *flowStore) put(state, nonce string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for s, e := range f.pending {
		if now.Sub(e.started) > flowTTL {
			delete(f.pending, s)
		}
	}
	f.pending[state] = flowEntry{nonce: nonce, started: now}
}

func (f *flowStore) take(state string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.pending[state]
	if !ok {
		return "", false
	}
	delete(f.pending, state)
	if time.Since(e.started) > flowTTL {
		return "", false
	}
	return e.nonce, true
}

// handleLoginBegin starts the federated login flow.
func (a *API) handleLoginBegin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	authURL, state, nonce, err := a.identity.Begin(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}
	a.flows.put(state, nonce)
	writeJSON(w, http.StatusOK, map[string]any{
		"auth_url": authURL,
		"state":    state,
	})
}

// handleLoginCallback completes the flow: exchanges the code, provisions the
// local user, and returns the signed bearer token.
func (a *API) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}
	nonce, ok := a.flows.take(state)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown or expired state")
		return
	}

	identity, err := a.identity.Exchange(r.Context(), code, nonce)
	if err != nil {
		obs.ObserveLogin(a.identity.Name(), "exchange_failed")
		writeError(w, http.StatusUnauthorized, "identity exchange failed")
		return
	}

	result, err := a.provisioner.ProvisionOnLogin(r.Context(), identity.Subject, identity.Email, identity.Provider)
	if err != nil {
		obs.ObserveLogin(identity.Provider, "provision_failed")
		if errors.Is(err, rbac.ErrSeedRoleMissing) {
			writeError(w, http.StatusInternalServerError, "service misconfigured: default role missing")
			return
		}
		writeError(w, http.StatusInternalServerError, "provisioning failed")
		return
	}
	obs.ObserveLogin(identity.Provider, "ok")

	writeJSON(w, http.StatusOK, map[string]any{
		"token":       result.Token,
		"expires_at":  result.ExpiresAt,
		"user_id":     result.User.ID,
		"email":       result.User.Email,
		"role":        result.RoleName,
		"permissions": result.Permissions,
	})
}

// handleLogout records a Logout event for the authenticated caller. The
// token itself stays valid until expiry; there is no revocation list.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := a.caller(w, r)
	if !ok {
		return
	}
	ev, err := a.ledger.Record(r.Context(), rbac.EventLogout, principal.UserID, principal.UserID, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": ev.ID})
}
