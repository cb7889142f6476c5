package httpapi

import (
	"net/http"
	"strings"

	"authgrid.org/internal/rbac"
)

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

// handleUsers lists provisioned users. Listing requires the role-change
// audit permission since the directory exposes role membership.
func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	principal, ok := a.caller(w, r)
	if !ok {
		return
	}
	if !a.requireLivePermission(w, r, principal, rbac.PermRoleChanges) {
		return
	}
	users, err := a.store.Users(r.Context()).List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list users failed")
		return
	}
	if users == nil {
		users = []*rbac.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleUserScoped routes /v1/users/{id}/role.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "role" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	a.assignUserRole(w, r, parts[0])
}

// assignUserRole changes a user's role and records the change in the
// security ledger. "User not found" and "Role not found" are reported as
// unsuccessful results, not HTTP errors; only infrastructure failures are.
func (a *API) assignUserRole(w http.ResponseWriter, r *http.Request, targetID string) {
	principal, ok := a.caller(w, r)
	if !ok {
		return
	}
	if !a.requireLivePermission(w, r, principal, rbac.PermRoleChanges) {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RoleID) == "" {
		writeError(w, http.StatusBadRequest, "role_id is required")
		return
	}

	result, err := a.assigner.AssignRole(r.Context(), targetID, req.RoleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "role assignment failed")
		return
	}
	if result.Success {
		details := "from=" + result.OldRoleName + " to=" + result.NewRoleName
		if _, err := a.ledger.Record(r.Context(), rbac.EventRoleAssigned, principal.UserID, targetID, details); err != nil {
			writeError(w, http.StatusInternalServerError, "role changed but audit write failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRoles lists the assignable roles with their permission claims.
func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := a.caller(w, r); !ok {
		return
	}
	roleStore := a.store.Roles(r.Context())
	roles, err := roleStore.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list roles failed")
		return
	}

	type roleView struct {
		rbac.Role
		Permissions []string `json:"permissions"`
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		claims, err := roleStore.ClaimsForRole(r.Context(), role.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list roles failed")
			return
		}
		perms := make([]string, 0, len(claims))
		for _, c := range claims {
			if c.Type == rbac.ClaimTypePermissions {
				perms = append(perms, c.Value)
			}
		}
		views = append(views, roleView{Role: *role, Permissions: perms})
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": views})
}
