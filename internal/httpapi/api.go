package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"authgrid.org/internal/audit"
	"authgrid.org/internal/idp"
	"authgrid.org/internal/obs"
	"authgrid.org/internal/rbac"
)

// ReadyProbe checks the dependencies readiness relies on.
type ReadyProbe struct {
	DB *sql.DB
}

// Check pings the database when one is configured.
func (p ReadyProbe) Check(ctx context.Context) error {
	if p.DB == nil {
		return nil
	}
	return p.DB.PingContext(ctx)
}

// Deps groups everything the API serves.
type Deps struct {
	Store       rbac.Store
	Tokens      *rbac.TokenCodec
	Authorizer  *rbac.Authorizer
	Provisioner *rbac.Provisioner
	Assigner    *rbac.RoleAssigner
	Ledger      *audit.Ledger
	Identity    idp.Provider
	ReadyProbe  ReadyProbe
	Version     string
}

// API is the HTTP surface over the authorization core.
type API struct {
	mux         *http.ServeMux
	store       rbac.Store
	tokens      *rbac.TokenCodec
	authorizer  *rbac.Authorizer
	provisioner *rbac.Provisioner
	assigner    *rbac.RoleAssigner
	ledger      *audit.Ledger
	identity    idp.Provider
	readyProbe  ReadyProbe
	version     string
	flows       *flowStore
}

// New wires routes onto a fresh mux.
func New(deps Deps) *API {
	a := &API{
		mux:         http.NewServeMux(),
		store:       deps.Store,
		tokens:      deps.Tokens,
		authorizer:  deps.Authorizer,
		provisioner: deps.Provisioner,
		assigner:    deps.Assigner,
		ledger:      deps.Ledger,
		identity:    deps.Identity,
		readyProbe:  deps.ReadyProbe,
		version:     deps.Version,
		flows:       newFlowStore(),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLoginBegin)
	a.mux.HandleFunc("/v1/auth/callback", a.handleLoginCallback)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	a.mux.HandleFunc("/v1/audit/events", a.handleAuditEvents)

	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)
	a.mux.HandleFunc("/v1/roles", a.handleRoles)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- Basic handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authgrid-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "authgrid-api",
		"version": a.version,
	})
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
