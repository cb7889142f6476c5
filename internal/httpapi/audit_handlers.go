package httpapi

import (
	"net/http"
	"strings"

	"authgrid.org/internal/rbac"
)

type addEventRequest struct {
	EventType      string `json:"event_type"`
	AffectedUserID string `json:"affected_user_id"`
	Details        string `json:"details"`
}

// handleAuditEvents serves the security-event ledger: GET lists events
// visible to the caller, POST appends an ad-hoc event.
func (a *API) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAuditEvents(w, r)
	case http.MethodPost:
		a.addAuditEvent(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// listAuditEvents returns events filtered by the caller's token permissions.
// Callers with neither audit permission get an empty list, not an error.
func (a *API) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.caller(w, r)
	if !ok {
		return
	}
	events, err := a.ledger.QueryForCaller(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if events == nil {
		events = []rbac.SecurityEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// addAuditEvent appends a caller-supplied event (logout bookkeeping, ad-hoc
// markers). Authentication is the only gate; the author is always the
// caller.
func (a *API) addAuditEvent(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req addEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.EventType) == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}
	affected := strings.TrimSpace(req.AffectedUserID)
	if affected == "" {
		affected = principal.UserID
	}
	ev, err := a.ledger.Record(r.Context(), req.EventType, principal.UserID, affected, req.Details)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit write failed")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}
