package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/records/memory"
	"fintrack/internal/services"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	store *memory.Store
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})})
	structured := log.NewStructuredLogger(logger)
	now := func() time.Time { return testNow }

	store := memory.New()
	dash := services.NewDashboardService(store, cache.NewLRUCache[services.Dashboard](10, time.Minute), structured, now)
	deps := Deps{
		Accounts:  services.NewAccountService(store, auth.NewHasher(bcrypt.MinCost), auth.NewTokenIssuer("test-secret-0123456789", time.Hour), logger),
		Ledger:    services.NewLedgerService(store, nil, dash, structured, now),
		Dashboard: dash,
		Store:     store,
		Logger:    logger,
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, decoded
}

// login registers username and returns a bearer token for it.
func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	creds := `{"username":"` + username + `","password":"secret"}`
	if rec, _ := e.do(t, http.MethodPost, "/api/register", creds, ""); rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	rec, body := e.do(t, http.MethodPost, "/api/login", creds, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	return body["token"].(string)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec, _ := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}

	rec, _ := env.do(t, http.MethodGet, "/metrics", "", "")
	for _, name := range []string{"http_requests_total", "ratelimit_rejected_total", "dashboard_cache_entries"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics missing %s:\n%s", name, rec.Body.String())
		}
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Store = downStore{} })
	rec, _ := env.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"register", "/api/register", `{"username":"amina","password":"secret"}`, http.StatusCreated},
		{"duplicate", "/api/register", `{"username":"amina","password":"other"}`, http.StatusConflict},
		{"short password", "/api/register", `{"username":"bob","password":"abc"}`, http.StatusBadRequest},
		{"missing username", "/api/register", `{"username":"  ","password":"secret"}`, http.StatusBadRequest},
		{"unknown field", "/api/register", `{"username":"bob","password":"secret","admin":true}`, http.StatusBadRequest},
		{"empty body", "/api/register", ``, http.StatusBadRequest},
		{"wrong password", "/api/login", `{"username":"amina","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", "/api/login", `{"username":"ghost","password":"secret"}`, http.StatusUnauthorized},
		{"login", "/api/login", `{"username":"amina","password":"secret"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, tt.path, tt.body, "")
			if rec.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.status, rec.Body.String())
			}
			wantSuccess := tt.status < 400
			if body["success"] != wantSuccess {
				t.Fatalf("success=%v want %v", body["success"], wantSuccess)
			}
			if !wantSuccess && body["error"] == "" {
				t.Fatalf("failure without error message")
			}
		})
	}

	_, body := env.do(t, http.MethodPost, "/api/login", `{"username":"amina","password":"secret"}`, "")
	user := body["user"].(map[string]any)
	if user["username"] != "amina" || body["token"] == "" || body["expiresAt"] == nil {
		t.Fatalf("unexpected login body %+v", body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, token := range []string{"", "not-a-jwt"} {
		rec, body := env.do(t, http.MethodGet, "/api/expenses", "", token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") == "" || body["success"] != false {
			t.Fatalf("token %q: missing challenge or envelope", token)
		}
	}
}

func TestExpenseLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "amina")

	bad := []string{
		`{"amount":"abc","category":"Food","date":"2025-03-10"}`,
		`{"amount":0,"category":"Food","date":"2025-03-10"}`,
		`{"amount":12,"category":"","date":"2025-03-10"}`,
		`{"amount":12,"category":"Food","date":"10/03/2025"}`,
		`{"amount":12,"category":"Food"}`,
		`{"amount":12,"category":"Food","date":"2025-03-10","tags":["x"]}`,
	}
	for _, b := range bad {
		if rec, _ := env.do(t, http.MethodPost, "/api/expenses", b, token); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d (%s)", b, rec.Code, rec.Body.String())
		}
	}

	rec, body := env.do(t, http.MethodPost, "/api/expenses", `{"amount":"12.50","category":"Food","note":"lunch","date":"2025-03-10"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := body["expense"].(map[string]any)
	if created["amount"] != 12.5 || created["date"] != "2025-03-10" {
		t.Fatalf("unexpected expense %+v", created)
	}
	id := int64(created["id"].(float64))

	env.do(t, http.MethodPost, "/api/expenses", `{"amount":30,"category":"Rent","date":"2025-02-01"}`, token)

	_, body = env.do(t, http.MethodGet, "/api/expenses?month=2025-03", "", token)
	if list := body["expenses"].([]any); len(list) != 1 {
		t.Fatalf("month filter: expected 1 expense, got %d", len(list))
	}
	_, body = env.do(t, http.MethodGet, "/api/expenses", "", token)
	list := body["expenses"].([]any)
	if len(list) != 2 || list[0].(map[string]any)["category"] != "Food" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if rec, _ := env.do(t, http.MethodGet, "/api/expenses?month=March", "", token); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid month: expected 400, got %d", rec.Code)
	}

	other := env.login(t, "bob")
	path := "/api/expenses/" + strconv.FormatInt(id, 10)
	if rec, _ := env.do(t, http.MethodDelete, path, "", other); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", rec.Code)
	}
	if rec, body := env.do(t, http.MethodDelete, path, "", token); rec.Code != http.StatusOK || body["deleted"] != true {
		t.Fatalf("delete: %d %+v", rec.Code, body)
	}
	if rec, _ := env.do(t, http.MethodDelete, path, "", token); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
	if rec, _ := env.do(t, http.MethodDelete, "/api/expenses/abc", "", token); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}
}

func TestIncomeSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "amina")

	for _, b := range []string{
		`{"amount":1000,"source":"Salary","date":"2025-03-01"}`,
		`{"amount":200,"source":"Freelance","date":"2025-02-15"}`,
	} {
		if rec, _ := env.do(t, http.MethodPost, "/api/incomes", b, token); rec.Code != http.StatusCreated {
			t.Fatalf("create income: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec, body := env.do(t, http.MethodGet, "/api/incomes/summary", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: %d", rec.Code)
	}
	summary := body["summary"].(map[string]any)
	if summary["monthTotal"] != 1000.0 || summary["total"] != 1200.0 || summary["topSource"] != "Salary" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	_, body = env.do(t, http.MethodGet, "/api/incomes?source=Freelance", "", token)
	if list := body["incomes"].([]any); len(list) != 1 {
		t.Fatalf("source filter: expected 1 income, got %d", len(list))
	}
}

func TestBudgetStatusShowsOverspend(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "amina")

	if rec, _ := env.do(t, http.MethodPost, "/api/budgets", `{"category":"Food","amount":100,"period":"monthly"}`, token); rec.Code != http.StatusCreated {
		t.Fatalf("set budget: %d %s", rec.Code, rec.Body.String())
	}
	if rec, _ := env.do(t, http.MethodPost, "/api/budgets", `{"category":"Food","amount":100,"period":"yearly"}`, token); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid period: expected 400, got %d", rec.Code)
	}
	env.do(t, http.MethodPost, "/api/expenses", `{"amount":150,"category":"Food","date":"2025-03-05"}`, token)

	rec, body := env.do(t, http.MethodGet, "/api/budgets/status?period=monthly", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	overview := body["overview"].(map[string]any)
	if overview["health"] != "Over Budget" {
		t.Fatalf("unexpected overview %+v", overview)
	}
	row := body["budgets"].([]any)[0].(map[string]any)
	if row["remainingText"] != "KES 50.00 over" || row["progressClass"] != "danger" || row["over"] != true {
		t.Fatalf("unexpected row %+v", row)
	}

	_, body = env.do(t, http.MethodGet, "/api/budgets?period=weekly", "", token)
	if list := body["budgets"].([]any); len(list) != 0 {
		t.Fatalf("weekly filter: expected none, got %d", len(list))
	}
}

func TestDashboardReflectsWrites(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "amina")

	env.do(t, http.MethodPost, "/api/incomes", `{"amount":500,"source":"Salary","date":"2025-03-01"}`, token)
	_, body := env.do(t, http.MethodGet, "/api/dashboard", "", token)
	if body["balanceText"] != "KES 500.00" {
		t.Fatalf("unexpected balance %v", body["balanceText"])
	}

	// cached dashboard must be invalidated by the next write
	env.do(t, http.MethodPost, "/api/expenses", `{"amount":200,"category":"Food","date":"2025-03-02"}`, token)
	_, body = env.do(t, http.MethodGet, "/api/dashboard", "", token)
	dash := body["dashboard"].(map[string]any)
	comparison := dash["comparison"].(map[string]any)
	if comparison["balance"] != 300.0 || comparison["trend"] != "positive" {
		t.Fatalf("unexpected comparison %+v", comparison)
	}
	if len(dash["monthly"].([]any)) != 6 || len(dash["recent"].([]any)) != 2 {
		t.Fatalf("unexpected series %+v", dash)
	}
	if dash["degraded"] != false {
		t.Fatalf("dashboard should not be degraded")
	}

	rec, body := env.do(t, http.MethodGet, "/api/alerts", "", token)
	if rec.Code != http.StatusOK || len(body["alerts"].([]any)) != 0 {
		t.Fatalf("alerts: %d %+v", rec.Code, body)
	}
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitPerMinute = 2 })

	creds := `{"username":"amina","password":"secret"}`
	env.do(t, http.MethodPost, "/api/register", creds, "")
	env.do(t, http.MethodPost, "/api/login", creds, "")
	rec, body := env.do(t, http.MethodPost, "/api/login", creds, "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" || body["success"] != false {
		t.Fatalf("expected 429 envelope, got %d %s", rec.Code, rec.Body.String())
	}
	if rec, _ := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rec.Code)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/unknown", "", "")
	if rec.Code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("expected 404 envelope, got %d", rec.Code)
	}
	for _, h := range []string{"X-Request-ID", "X-Content-Type-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	pre := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(pre, req)
	if pre.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("preflight missing CORS headers: %v", pre.Header())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
