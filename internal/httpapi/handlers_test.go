package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"simantu.org/internal/auth"
	"simantu.org/internal/ids"
	"simantu.org/internal/store/memory"
)

const (
	adminEmail    = "admin@simantu.test"
	adminPassword = "admin-pass"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	svc     *auth.Service
	store   *memory.Store
}

type testOption func(*Options)

func newTestAPI(t *testing.T, opts ...testOption) *apiClient {
	t.Helper()

	store := memory.New()
	svc, err := auth.NewService(store, auth.NewTokenService("test-secret"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.EnsureAdmin(context.Background(), "Admin", adminEmail, adminPassword); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	o := Options{Auth: svc, Version: "test", RateBurst: 1000, RatePerSec: 1000}
	for _, opt := range opts {
		opt(&o)
	}
	srv := httptest.NewServer(New(o).Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		svc:     svc,
		store:   store,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if raw, ok := body.(string); ok {
			payload = []byte(raw)
		} else if payload, err = json.Marshal(body); err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, token string) *http.Response {
	return c.do(http.MethodPost, path, body, token)
}

func (c *apiClient) get(path, token string) *http.Response {
	return c.do(http.MethodGet, path, nil, token)
}

func (c *apiClient) login(email, password string) loginResponse {
	c.t.Helper()
	resp := c.post("/api/auth/login", map[string]string{"email": email, "password": password}, "")
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	payload := decode[loginResponse](c.t, resp)
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload
}

func (c *apiClient) adminToken() string {
	return c.login(adminEmail, adminPassword).Token
}

// seedAccount creates a role with perms and an account bound to it.
func (c *apiClient) seedAccount(email string, perms ...string) auth.Account {
	c.t.Helper()
	ctx := context.Background()
	role, err := c.svc.CreateRole(ctx, auth.RoleInput{Name: "role-" + email, Permissions: perms})
	if err != nil {
		c.t.Fatalf("CreateRole: %v", err)
	}
	acc, err := c.svc.CreateAccount(ctx, auth.AccountInput{Name: "Staff", Email: email, Password: "staff-pass", RoleID: role.ID})
	if err != nil {
		c.t.Fatalf("CreateAccount: %v", err)
	}
	return acc
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) map[string]any {
	t.Helper()
	if resp.StatusCode != want {
		resp.Body.Close()
		t.Fatalf("expected %d, got %d", want, resp.StatusCode)
	}
	if want == http.StatusNoContent {
		resp.Body.Close()
		return nil
	}
	return decode[map[string]any](t, resp)
}

// expectOK fails unless resp is a 200 and hands the response back for decoding.
func expectOK(t *testing.T, resp *http.Response) *http.Response {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	return resp
}

// expectCode checks only the status and discards the body.
func expectCode(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func TestLoginReturnsTokenAndProfile(t *testing.T) {
	api := newTestAPI(t)

	res := api.login(adminEmail, adminPassword)
	if res.User.Email != adminEmail || res.User.Role != auth.AdministratorRole {
		t.Fatalf("unexpected profile: %+v", res.User)
	}
	if len(res.User.Permissions) != len(auth.BuiltinPermissions) {
		t.Fatalf("expected all permissions, got %v", res.User.Permissions)
	}
	if d := time.Until(res.ExpiresAt); d < 23*time.Hour || d > 24*time.Hour+time.Minute {
		t.Fatalf("unexpected expiry window: %v", d)
	}
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	api := newTestAPI(t)

	for _, creds := range []map[string]string{
		{"email": adminEmail, "password": "wrong-pass"},
		{"email": "nobody@simantu.test", "password": adminPassword},
	} {
		body := expectStatus(t, api.post("/api/auth/login", creds, ""), http.StatusUnauthorized)
		if body["error"] != "invalid credentials" {
			t.Fatalf("unexpected error message: %v", body["error"])
		}
		if body["request_id"] == "" || body["request_id"] == nil {
			t.Fatalf("expected request id in error body")
		}
	}
}

func TestLoginValidatesInput(t *testing.T) {
	api := newTestAPI(t)

	cases := []any{
		map[string]string{"email": "not-an-email", "password": "secret1"},
		map[string]string{"email": adminEmail, "password": "123"},
		`{"email": "a@b.co"`,
		`{"email": "a@b.co", "password": "secret1", "extra": true}`,
	}
	for _, body := range cases {
		got := expectStatus(t, api.post("/api/auth/login", body, ""), http.StatusBadRequest)
		if got["error"] != "invalid input data" {
			t.Fatalf("unexpected error for %v: %v", body, got["error"])
		}
	}

	resp := api.get("/api/auth/login", "")
	expectStatus(t, resp, http.StatusMethodNotAllowed)
}

func TestMeRequiresValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken()

	profile := decode[auth.Profile](t, api.get("/api/auth/me", token))
	if profile.Email != adminEmail {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	resp := api.get("/api/auth/me", "")
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate on missing token")
	}
	expectStatus(t, resp, http.StatusUnauthorized)

	expectStatus(t, api.get("/api/auth/me", token[:len(token)-3]), http.StatusUnauthorized)
	expectStatus(t, api.get("/api/auth/me", "garbage"), http.StatusUnauthorized)

	foreign, _, err := auth.NewTokenService("other-secret").Issue(profile.ID, profile.Email)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expectStatus(t, api.get("/api/auth/me", foreign), http.StatusUnauthorized)
}

func TestMeExpiredToken(t *testing.T) {
	api := newTestAPI(t)
	profile := api.login(adminEmail, adminPassword).User

	issued := time.Now().Add(-25 * time.Hour)
	stale, _, err := auth.NewTokenService("test-secret", auth.WithTokenClock(func() time.Time { return issued })).
		Issue(profile.ID, profile.Email)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expectStatus(t, api.get("/api/auth/me", stale), http.StatusUnauthorized)
}

func TestMeVanishedAccount(t *testing.T) {
	api := newTestAPI(t)
	staff := api.seedAccount("staff@simantu.test", auth.PermDashboardRead)
	token := api.login("staff@simantu.test", "staff-pass").Token

	if err := api.store.DeleteAccount(context.Background(), staff.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	body := expectStatus(t, api.get("/api/auth/me", token), http.StatusNotFound)
	if body["error"] != "account not found" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestUsersCRUD(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken()

	roles := decode[[]auth.Role](t, api.get("/api/roles", token))
	if len(roles) != 1 || roles[0].UserCount != 1 {
		t.Fatalf("unexpected roles: %+v", roles)
	}
	roleID := roles[0].ID

	resp := api.post("/api/users", map[string]string{
		"name": "Aigerim", "email": "Aigerim@Simantu.test", "password": "secret1", "role_id": roleID,
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") == "" {
		t.Fatalf("expected Location header")
	}
	created := decode[map[string]any](t, resp)
	if created["email"] != "aigerim@simantu.test" {
		t.Fatalf("email not normalized: %v", created["email"])
	}
	if _, leaked := created["password_hash"]; leaked {
		t.Fatalf("password hash leaked: %v", created)
	}
	id := created["id"].(string)

	expectStatus(t, api.post("/api/users", map[string]string{
		"name": "Dup", "email": "aigerim@simantu.test", "password": "secret1", "role_id": roleID,
	}, token), http.StatusConflict)

	list := decode[[]auth.Account](t, api.get("/api/users", token))
	if len(list) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(list))
	}

	updated := expectStatus(t, api.do(http.MethodPut, "/api/users/"+id, map[string]string{"name": "Aigerim B."}, token), http.StatusOK)
	if updated["name"] != "Aigerim B." {
		t.Fatalf("unexpected update: %v", updated)
	}
	expectStatus(t, api.do(http.MethodPut, "/api/users/"+id, map[string]string{}, token), http.StatusBadRequest)

	expectStatus(t, api.do(http.MethodDelete, "/api/users/"+id, nil, token), http.StatusNoContent)
	expectStatus(t, api.get("/api/users/"+id, token), http.StatusNotFound)
	expectStatus(t, api.get("/api/users/not-a-ulid", token), http.StatusNotFound)
}

func TestCannotDeleteOwnAccount(t *testing.T) {
	api := newTestAPI(t)
	res := api.login(adminEmail, adminPassword)

	body := expectStatus(t, api.do(http.MethodDelete, "/api/users/"+res.User.ID, nil, res.Token), http.StatusBadRequest)
	if body["error"] == nil {
		t.Fatalf("expected error message")
	}
}

func TestRolesCRUDAndInUse(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken()

	role := expectStatus(t, api.post("/api/roles", map[string]any{
		"name": "Analyst", "description": "reads reports", "permissions": []string{"analytics.read", "analytics.read", "dashboard.read"},
	}, token), http.StatusCreated)
	perms, _ := role["permissions"].([]any)
	if len(perms) != 2 {
		t.Fatalf("permissions should be deduplicated: %v", role["permissions"])
	}
	roleID := role["id"].(string)

	expectStatus(t, api.post("/api/roles", map[string]any{"name": "Analyst"}, token), http.StatusConflict)

	updated := expectStatus(t, api.do(http.MethodPut, "/api/roles/"+roleID, map[string]any{"permissions": []string{"tasks.read"}}, token), http.StatusOK)
	if got, _ := updated["permissions"].([]any); len(got) != 1 || got[0] != "tasks.read" {
		t.Fatalf("permissions not replaced: %v", updated["permissions"])
	}

	expectStatus(t, api.post("/api/users", map[string]string{
		"name": "Bolat", "email": "bolat@simantu.test", "password": "secret1", "role_id": roleID,
	}, token), http.StatusCreated)
	expectStatus(t, api.do(http.MethodDelete, "/api/roles/"+roleID, nil, token), http.StatusConflict)

	fetched := expectStatus(t, api.get("/api/roles/"+roleID, token), http.StatusOK)
	if fetched["user_count"] != float64(1) {
		t.Fatalf("unexpected user_count: %v", fetched["user_count"])
	}
}

func TestPermissionsEnforced(t *testing.T) {
	api := newTestAPI(t)
	api.seedAccount("viewer@simantu.test", auth.PermUsersRead)
	token := api.login("viewer@simantu.test", "staff-pass").Token

	users := decode[[]auth.Account](t, expectOK(t, api.get("/api/users", token)))
	if len(users) != 2 {
		t.Fatalf("expected admin and viewer, got %d accounts", len(users))
	}
	expectCode(t, api.get("/api/roles", token), http.StatusForbidden)
	expectCode(t, api.post("/api/users", map[string]string{
		"name": "Nope", "email": "nope@simantu.test", "password": "secret1", "role_id": "x",
	}, token), http.StatusForbidden)
	expectCode(t, api.do(http.MethodDelete, "/api/users/"+ids.New(), nil, token), http.StatusForbidden)
}

type stubProbe struct{ err error }

func (p stubProbe) Check(context.Context) error { return p.err }

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	body := expectStatus(t, api.get("/api/health", ""), http.StatusOK)
	if body["status"] != "OK" || body["version"] != "test" {
		t.Fatalf("unexpected health: %v", body)
	}
	detailed := expectStatus(t, api.get("/api/health/detailed", ""), http.StatusOK)
	if detailed["go_version"] == nil {
		t.Fatalf("detailed health lacks runtime info: %v", detailed)
	}
	if live := expectStatus(t, api.get("/api/health/live", ""), http.StatusOK); live["status"] != "ALIVE" {
		t.Fatalf("unexpected live: %v", live)
	}
	if ready := expectStatus(t, api.get("/api/health/ready", ""), http.StatusOK); ready["status"] != "READY" {
		t.Fatalf("unexpected ready: %v", ready)
	}

	down := newTestAPI(t, func(o *Options) { o.Ready = stubProbe{err: errors.New("db down")} })
	if ready := expectStatus(t, down.get("/api/health/ready", ""), http.StatusServiceUnavailable); ready["status"] != "NOT_READY" {
		t.Fatalf("unexpected ready: %v", ready)
	}
	if h := expectStatus(t, down.get("/api/health", ""), http.StatusServiceUnavailable); h["status"] != "ERROR" {
		t.Fatalf("unexpected health: %v", h)
	}
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	expectStatus(t, api.get("/api/unknown", ""), http.StatusUnauthorized)
	expectStatus(t, api.get("/api/unknown", api.adminToken()), http.StatusNotFound)
}
