package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"authgrid.org/internal/audit"
	"authgrid.org/internal/idp/dev"
	"authgrid.org/internal/rbac"
)

type testEnv struct {
	handler http.Handler
	store   *rbac.MemoryStore
	tokens  *rbac.TokenCodec
	ledger  *audit.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := rbac.NewMemoryStore()
	store.Seed()

	tokens, err := rbac.NewTokenCodec(rbac.TokenConfig{
		Secret: "test-secret", Issuer: "test", Audience: "test-clients",
	})
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	ledger, err := audit.NewLedger(store)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	authorizer, err := rbac.NewAuthorizer(store)
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	provisioner, err := rbac.NewProvisioner(store, ledger, tokens)
	if err != nil {
		t.Fatalf("NewProvisioner: %v", err)
	}
	assigner, err := rbac.NewRoleAssigner(store)
	if err != nil {
		t.Fatalf("NewRoleAssigner: %v", err)
	}
	identity, err := dev.New(dev.Config{Subject: "dev-sub", Email: "dev@example.com", Provider: "Dev"})
	if err != nil {
		t.Fatalf("dev.New: %v", err)
	}

	api := New(Deps{
		Store:       store,
		Tokens:      tokens,
		Authorizer:  authorizer,
		Provisioner: provisioner,
		Assigner:    assigner,
		Ledger:      ledger,
		Identity:    identity,
		Version:     "test",
	})
	return &testEnv{handler: api.Handler(), store: store, tokens: tokens, ledger: ledger}
}

// addUser inserts a user with the given role and returns a valid bearer
// token for it.
func (e *testEnv) addUser(t *testing.T, id, roleID string, perms ...string) string {
	t.Helper()
	now := time.Now().UTC()
	err := e.store.Users(context.Background()).Create(context.Background(), &rbac.User{
		ID: id, Provider: "Okta", ExternalID: "ext-" + id,
		Email: id + "@example.com", RoleID: roleID,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	token, _, err := e.tokens.Issue(id, id+"@example.com", "", perms)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/audit/events", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/audit/events", "garbage", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/events", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec2 := httptest.NewRecorder()
	env.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: got %d, want 401", rec2.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/auth/login", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login begin: %d (%s)", rec.Code, rec.Body.String())
	}
	var begin struct {
		AuthURL string `json:"auth_url"`
		State   string `json:"state"`
	}
	decodeBody(t, rec, &begin)
	if begin.State == "" || begin.AuthURL == "" {
		t.Fatalf("incomplete begin response: %+v", begin)
	}

	u, err := url.Parse(begin.AuthURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	rec = env.do(t, http.MethodGet, u.Path+"?"+u.RawQuery, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: %d (%s)", rec.Code, rec.Body.String())
	}
	var cb struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	decodeBody(t, rec, &cb)
	if cb.Token == "" {
		t.Fatalf("expected a token")
	}
	if cb.Role != rbac.RoleBasicUser {
		t.Fatalf("expected default role, got %s", cb.Role)
	}

	// The issued token authenticates follow-up requests.
	rec = env.do(t, http.MethodPost, "/v1/auth/logout", cb.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d (%s)", rec.Code, rec.Body.String())
	}

	// A state cannot be replayed.
	rec = env.do(t, http.MethodGet, u.Path+"?"+u.RawQuery, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("state replay: got %d, want 400", rec.Code)
	}
}

func TestAuditEventsVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ledger.Record(ctx, rbac.EventLoginSuccess, "u1", "u1", "provider=Okta"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := env.ledger.Record(ctx, rbac.EventRoleAssigned, "admin", "u1", "from=BasicUser to=AuthObserver"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	basicToken := env.addUser(t, "basic", rbac.SeedRoleBasicUserID)
	observerToken := env.addUser(t, "observer", rbac.SeedRoleAuthObserverID, rbac.PermViewAuthEvents)
	auditorToken := env.addUser(t, "auditor", rbac.SeedRoleSecurityAuditorID, rbac.PermViewAuthEvents, rbac.PermRoleChanges)

	var resp struct {
		Events []rbac.SecurityEvent `json:"events"`
	}

	rec := env.do(t, http.MethodGet, "/v1/audit/events", basicToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("basic: %d", rec.Code)
	}
	decodeBody(t, rec, &resp)
	if len(resp.Events) != 0 {
		t.Fatalf("basic user should see no events, got %d", len(resp.Events))
	}

	rec = env.do(t, http.MethodGet, "/v1/audit/events", observerToken, "")
	decodeBody(t, rec, &resp)
	if len(resp.Events) != 1 || resp.Events[0].EventType != rbac.EventLoginSuccess {
		t.Fatalf("observer should see only auth events, got %+v", resp.Events)
	}

	rec = env.do(t, http.MethodGet, "/v1/audit/events", auditorToken, "")
	decodeBody(t, rec, &resp)
	if len(resp.Events) != 2 {
		t.Fatalf("auditor should see every event, got %d", len(resp.Events))
	}
}

func TestAssignRoleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	auditorToken := env.addUser(t, "auditor", rbac.SeedRoleSecurityAuditorID, rbac.PermViewAuthEvents, rbac.PermRoleChanges)
	basicToken := env.addUser(t, "basic", rbac.SeedRoleBasicUserID)
	env.addUser(t, "target", rbac.SeedRoleBasicUserID)

	// No permission: forbidden.
	rec := env.do(t, http.MethodPost, "/v1/users/target/role", basicToken,
		`{"role_id":"`+rbac.SeedRoleAuthObserverID+`"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("basic user: got %d, want 403", rec.Code)
	}

	// Auditor: role changes and the change is audited.
	rec = env.do(t, http.MethodPost, "/v1/users/target/role", auditorToken,
		`{"role_id":"`+rbac.SeedRoleAuthObserverID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("auditor: %d (%s)", rec.Code, rec.Body.String())
	}
	var result rbac.AssignRoleResult
	decodeBody(t, rec, &result)
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Message != "Role changed from BasicUser to AuthObserver" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	events, err := env.store.Events(context.Background()).List(context.Background(), rbac.EventFilter{
		TypePrefixes: []string{rbac.EventRoleAssigned},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one RoleAssigned event, got %d", len(events))
	}
	ev := events[0]
	if ev.AuthorUserID != "auditor" || ev.AffectedUserID != "target" {
		t.Fatalf("unexpected author/affected: %+v", ev)
	}
	if ev.Details != "from=BasicUser to=AuthObserver" {
		t.Fatalf("unexpected details: %q", ev.Details)
	}

	// Unknown target user is a business outcome, not an HTTP error.
	rec = env.do(t, http.MethodPost, "/v1/users/no-such-user/role", auditorToken,
		`{"role_id":"`+rbac.SeedRoleAuthObserverID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown user: %d", rec.Code)
	}
	decodeBody(t, rec, &result)
	if result.Success || result.Message != "User not found" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAssignRoleRevocationIsLive(t *testing.T) {
	env := newTestEnv(t)
	// Token still claims the auditor permissions, but the stored role is
	// BasicUser: the live check must win.
	staleToken := env.addUser(t, "demoted", rbac.SeedRoleBasicUserID, rbac.PermRoleChanges)
	env.addUser(t, "target", rbac.SeedRoleBasicUserID)

	rec := env.do(t, http.MethodPost, "/v1/users/target/role", staleToken,
		`{"role_id":"`+rbac.SeedRoleAuthObserverID+`"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stale token: got %d, want 403", rec.Code)
	}
}

func TestListRolesAndUsers(t *testing.T) {
	env := newTestEnv(t)
	auditorToken := env.addUser(t, "auditor", rbac.SeedRoleSecurityAuditorID, rbac.PermRoleChanges)
	basicToken := env.addUser(t, "basic", rbac.SeedRoleBasicUserID)

	rec := env.do(t, http.MethodGet, "/v1/roles", basicToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("roles: %d", rec.Code)
	}
	var roles struct {
		Roles []struct {
			Name        string   `json:"name"`
			Permissions []string `json:"permissions"`
		} `json:"roles"`
	}
	decodeBody(t, rec, &roles)
	if len(roles.Roles) != 3 {
		t.Fatalf("expected 3 seeded roles, got %d", len(roles.Roles))
	}

	// User directory needs the role-change permission.
	rec = env.do(t, http.MethodGet, "/v1/users", basicToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("basic user list: got %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v1/users", auditorToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("auditor user list: %d", rec.Code)
	}
	var users struct {
		Users []rbac.User `json:"users"`
	}
	decodeBody(t, rec, &users)
	if len(users.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users.Users))
	}
}

func TestAddAdHocAuditEvent(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, "u1", rbac.SeedRoleBasicUserID)

	rec := env.do(t, http.MethodPost, "/v1/audit/events", token,
		`{"event_type":"PasswordChangeRequested","details":"self-service"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add event: %d (%s)", rec.Code, rec.Body.String())
	}
	var ev rbac.SecurityEvent
	decodeBody(t, rec, &ev)
	if ev.AuthorUserID != "u1" || ev.AffectedUserID != "u1" {
		t.Fatalf("author/affected should default to the caller: %+v", ev)
	}

	rec = env.do(t, http.MethodPost, "/v1/audit/events", token, `{"event_type":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank type: got %d, want 400", rec.Code)
	}
}
