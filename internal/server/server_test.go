package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teamplatform/teamplatform/internal/async"
	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/ratelimit"
	"github.com/teamplatform/teamplatform/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server *Server
	store  *config.Store
	auth   *service.AuthService
}

type envOption func(*Config, *Deps)

func withClasses(c ratelimit.Classes) envOption {
	return func(_ *Config, d *Deps) { d.Classes = c }
}

func withPerKeyRPM(n int) envOption {
	return func(c *Config, _ *Deps) { c.PerKeyRPM = n }
}

// newTestEnv creates a fully wired Server over an in-memory store.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store, err := config.NewStore(config.StoreOptions{})
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := async.Inline{Logger: logger}
	auth := service.NewAuthService(store, testJWTSecret, time.Hour, logger)

	cfg := DefaultConfig()
	cfg.Version = "test"
	deps := Deps{
		Store:   store,
		Auth:    auth,
		Keys:    service.NewAPIKeyService(store, exec, logger),
		Audit:   audit.NewRecorder(store, exec, logger),
		Limiter: ratelimit.New(ratelimit.WithLogger(logger)),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	return &testEnv{
		server: New(cfg, deps, logger),
		store:  store,
		auth:   auth,
	}
}

// seedUser creates an active user with testPassword.
func (e *testEnv) seedUser(t *testing.T, email, role string) *model.User {
	t.Helper()
	u, err := service.NewUser(email, testPassword, "Test User", role)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// login signs in through the HTTP surface and returns the session token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/auth/login", jsonBody(t, map[string]string{
		"email":    email,
		"password": testPassword,
	}), nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("login: got empty token")
	}
	return resp.Token
}

// do executes an HTTP request against the test server. Requests come from
// 192.0.2.10 unless headers override X-Real-IP.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Real-IP", "192.0.2.10")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"X-API-Key": apiKey})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Probes
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("unexpected health body: %v", resp)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["store"] != "ok" {
		t.Errorf("store = %q, want ok", resp["store"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "GET", "/healthz", nil, nil)

	rr := env.do(t, "GET", "/metrics", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "teamplatform_admission_decisions_total") {
		t.Error("metrics output missing admission counter")
	}
}

// ---------------------------------------------------------------------------
// Admission gate
// ---------------------------------------------------------------------------

func TestAdmission_HeadersOnAllowedRequests(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want 100", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "99" {
		t.Errorf("X-RateLimit-Remaining = %q, want 99", got)
	}
	if got := rr.Header().Get("X-RateLimit-Reset"); got != "60" {
		t.Errorf("X-RateLimit-Reset = %q, want 60", got)
	}
}

func TestAdmission_LoginBruteForce(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "coach@example.com", model.RoleCoach)

	attempt := func(ip string) *httptest.ResponseRecorder {
		return env.do(t, "POST", "/api/auth/login", jsonBody(t, map[string]string{
			"email":    "coach@example.com",
			"password": "wrong-password",
		}), map[string]string{"X-Real-IP": ip})
	}

	for i := 1; i <= 10; i++ {
		rr := attempt("198.51.100.1")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != fmt.Sprint(10-i) {
			t.Errorf("attempt %d: remaining = %q, want %d", i, got, 10-i)
		}
	}

	rr := attempt("198.51.100.1")
	assertStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 should carry Retry-After")
	}
	var body model.RateLimitedResponse
	decodeJSON(t, rr, &body)
	if body.Error != "Too many requests" || body.RetryAfter <= 0 || body.RetryAfter > 60 {
		t.Errorf("unexpected 429 body: %+v", body)
	}

	// Another client is unaffected.
	assertStatus(t, attempt("198.51.100.2"), http.StatusUnauthorized)
}

func TestAdmission_RunsBeforeAuthentication(t *testing.T) {
	classes := ratelimit.DefaultClasses()
	classes[ratelimit.ClassAPI] = ratelimit.Config{Requests: 2, Window: time.Minute}
	env := newTestEnv(t, withClasses(classes))

	assertStatus(t, env.do(t, "GET", "/api/admin/api-keys", nil, nil), http.StatusUnauthorized)
	assertStatus(t, env.do(t, "GET", "/api/v1/whoami", nil, nil), http.StatusUnauthorized)
	assertStatus(t, env.do(t, "GET", "/api/rosters", nil, nil), http.StatusTooManyRequests)

	// The default class keeps its own window for the same client.
	assertStatus(t, env.do(t, "GET", "/healthz", nil, nil), http.StatusOK)
}

func TestAdmission_StaticBypass(t *testing.T) {
	classes := ratelimit.DefaultClasses()
	classes[ratelimit.ClassDefault] = ratelimit.Config{Requests: 1, Window: time.Minute}
	env := newTestEnv(t, withClasses(classes))

	for i := 0; i < 5; i++ {
		rr := env.do(t, "GET", "/openapi.json", nil, nil)
		assertStatus(t, rr, http.StatusOK)
		if rr.Header().Get("X-RateLimit-Limit") != "" {
			t.Fatal("static paths should not carry rate-limit headers")
		}
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

func TestBearerTokenKinds(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin@example.com", model.RoleAdmin)
	session := env.login(t, "admin@example.com")

	// A session token is not an API key.
	rr := env.doAuth(t, "GET", "/api/v1/whoami", nil, session)
	assertStatus(t, rr, http.StatusUnauthorized)

	// An API key is not a session token.
	rr = env.doAuth(t, "GET", "/api/auth/me", nil, "tp_0000")
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAuth(t, "GET", "/api/auth/me", nil, session)
	assertStatus(t, rr, http.StatusOK)
}

func TestExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "admin@example.com", model.RoleAdmin)

	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"role":  u.Role,
		"iss":   "teamplatform",
		"iat":   time.Now().Add(-2 * time.Hour).Unix(),
		"exp":   time.Now().Add(-time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	rr := env.doAuth(t, "GET", "/api/admin/api-keys", nil, tok)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestPerKeyThrottle(t *testing.T) {
	env := newTestEnv(t, withPerKeyRPM(2))
	env.seedUser(t, "admin@example.com", model.RoleAdmin)
	tok := env.login(t, "admin@example.com")

	rr := env.doAuth(t, "POST", "/api/admin/api-keys", jsonBody(t, map[string]interface{}{
		"name":        "sync",
		"permissions": []string{"roster:read"},
	}), tok)
	assertStatus(t, rr, http.StatusCreated)
	var created struct {
		Key string `json:"key"`
	}
	decodeJSON(t, rr, &created)

	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/rosters", nil, created.Key), http.StatusOK)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/rosters", nil, created.Key), http.StatusOK)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/rosters", nil, created.Key), http.StatusTooManyRequests)
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/api/v1/rosters", nil, map[string]string{
		"Origin":                        "https://coach.example.com",
		"Access-Control-Request-Method": "GET",
	})
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin on preflight")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "PUT", "/api/auth/login", nil, nil)
	assertStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/healthz", nil, map[string]string{"X-Request-ID": "req-123"})
	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin@example.com", model.RoleAdmin)
	tok := env.login(t, "admin@example.com")

	// 1. Issue a read/write key.
	rr := env.doAuth(t, "POST", "/api/admin/api-keys", jsonBody(t, map[string]interface{}{
		"name":          "Meet manager",
		"permissions":   []string{"roster:read", "roster:write"},
		"expiresInDays": 7,
	}), tok)
	assertStatus(t, rr, http.StatusCreated)
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	decodeJSON(t, rr, &created)

	// 2. Use it against the external API.
	rr = env.doAPIKey(t, "POST", "/api/v1/rosters", jsonBody(t, map[string]string{"name": "Age Group"}), created.Key)
	assertStatus(t, rr, http.StatusCreated)

	rr = env.doAPIKey(t, "GET", "/api/v1/rosters", nil, created.Key)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "Age Group") {
		t.Errorf("roster missing from list: %s", rr.Body.String())
	}

	// 3. Usage was accounted.
	rec, err := env.store.GetAPIKey(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if rec.UsageCount != 2 || rec.LastUsedAt == nil {
		t.Errorf("usage = %d, last used %v", rec.UsageCount, rec.LastUsedAt)
	}

	// 4. The audit trail shows the login, issuance, and external create.
	rr = env.doAuth(t, "GET", "/api/admin/audit-logs", nil, tok)
	assertStatus(t, rr, http.StatusOK)
	var logs struct {
		Resource []model.AuditLog `json:"resource"`
	}
	decodeJSON(t, rr, &logs)
	seen := make(map[string]bool)
	for _, l := range logs.Resource {
		seen[l.Action.String()] = true
	}
	for _, want := range []string{"user.login", "apikey.create", "roster.create"} {
		if !seen[want] {
			t.Errorf("audit trail missing %s: %v", want, seen)
		}
	}

	// 5. Revoke and confirm the key is refused.
	rr = env.doAuth(t, "DELETE", "/api/admin/api-keys/"+created.ID, nil, tok)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAPIKey(t, "GET", "/api/v1/rosters", nil, created.Key)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.server.cfg.Host = "127.0.0.1"
	env.server.cfg.Port = 0
	env.server.cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
