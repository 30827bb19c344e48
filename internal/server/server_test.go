package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/events"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/storage"
	"expensetracker/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	srv       *Server
	publisher *events.Recorder
	metrics   *metrics.Metrics
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func sequentialIDs() func() core.ID {
	var n atomic.Int64
	return func() core.ID { return core.ID(fmt.Sprintf("new-%d", n.Add(1))) }
}

func newTestEnv(t *testing.T, cfg Config, repo storage.Repository) *testEnv {
	t.Helper()
	if repo == nil {
		seed, err := storage.DefaultSeed()
		if err != nil {
			t.Fatal(err)
		}
		repo, err = memory.NewSeeded(context.Background(), seed, memory.WithIDs(sequentialIDs()))
		if err != nil {
			t.Fatal(err)
		}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return fixedNow }
	}
	env := &testEnv{publisher: &events.Recorder{}, metrics: metrics.New()}
	srv, err := New(cfg, repo, env.publisher, quietLogger(), env.metrics)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestUsersEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	rec := env.do(t, http.MethodGet, "/users?username=admin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	users := decode[[]core.UserRecord](t, rec)
	if len(users) != 1 || users[0].ID != "1" || users[0].Password != "admin123" {
		t.Fatalf("lookup = %+v", users)
	}

	rec = env.do(t, http.MethodGet, "/users?username=nobody", "")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("unknown username body = %s, want []", got)
	}

	rec = env.do(t, http.MethodGet, "/users", "")
	if all := decode[[]core.UserRecord](t, rec); len(all) != 3 {
		t.Fatalf("all users = %d, want 3", len(all))
	}

	rec = env.do(t, http.MethodPost, "/users", `{"username":"ada","password":"pw","name":"Ada"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body)
	}
	if created := decode[core.UserRecord](t, rec); created.ID != "new-1" || created.Username != "ada" {
		t.Fatalf("created = %+v", created)
	}

	rec = env.do(t, http.MethodPost, "/users", `{"username":"ada","password":"other","name":"Other"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/users/2", `{"name":"Jane Smith"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	if patched := decode[core.UserRecord](t, rec); patched.Name != "Jane Smith" || patched.Username != "jane" {
		t.Fatalf("patched = %+v", patched)
	}

	rec = env.do(t, http.MethodGet, "/users/2", "")
	if got := decode[core.UserRecord](t, rec); got.Name != "Jane Smith" {
		t.Fatalf("get after patch = %+v", got)
	}

	rec = env.do(t, http.MethodPatch, "/users/999", `{"name":"Ghost"}`)
	if rec.Code != http.StatusNotFound || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Fatalf("patch missing = %d %s", rec.Code, rec.Body)
	}
}

func TestUsersEndpoints_BadInput(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"malformed json", http.MethodPost, "/users", `{"username":`},
		{"missing username", http.MethodPost, "/users", `{"password":"pw"}`},
		{"missing password", http.MethodPost, "/users", `{"username":"x"}`},
		{"two documents", http.MethodPost, "/users", `{"username":"x","password":"y"}{}`},
		{"blank name", http.MethodPatch, "/users/1", `{"name":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestExpensesEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	rec := env.do(t, http.MethodGet, "/expenses?userId=1", "")
	list := decode[[]core.Expense](t, rec)
	if len(list) != 3 || list[0].ID != "1" || list[2].ID != "3" {
		t.Fatalf("seeded list = %+v", list)
	}

	rec = env.do(t, http.MethodPost, "/expenses",
		`{"userId":"1","category":"Food","amount":18.75,"date":"2024-03-09","description":"  Lunch  "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body)
	}
	created := decode[core.Expense](t, rec)
	if created.ID != "new-1" || created.Description != "Lunch" || !created.CreatedAt.Equal(fixedNow) {
		t.Fatalf("created = %+v", created)
	}

	rec = env.do(t, http.MethodGet, "/expenses?userId=1", "")
	if list := decode[[]core.Expense](t, rec); len(list) != 4 || list[3].ID != "new-1" {
		t.Fatalf("list after create = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/expenses/new-1", "")
	if got := decode[core.Expense](t, rec); got.Amount.String() != "18.75" {
		t.Fatalf("get = %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/expenses/new-1", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Fatalf("delete = %d %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodDelete, "/expenses/new-1", "")
	if rec.Code != http.StatusNotFound || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Fatalf("second delete = %d %s", rec.Code, rec.Body)
	}

	evs := env.publisher.Events()
	if len(evs) != 2 {
		t.Fatalf("events = %+v", evs)
	}
	if evs[0].Type != events.ExpenseCreated || evs[0].Expense == nil || evs[0].Expense.Description != "Lunch" {
		t.Fatalf("created event = %+v", evs[0])
	}
	if evs[1].Type != events.ExpenseDeleted || evs[1].ExpenseID != "new-1" || evs[1].UserID != "1" {
		t.Fatalf("deleted event = %+v", evs[1])
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no owner", `{"category":"Food","amount":1,"date":"2024-03-01","description":"x"}`, "userId"},
		{"unknown category", `{"userId":"1","category":"Travel","amount":1,"date":"2024-03-01","description":"x"}`, "category"},
		{"zero amount", `{"userId":"1","category":"Food","amount":0,"date":"2024-03-01","description":"x"}`, "amount"},
		{"negative amount", `{"userId":"1","category":"Food","amount":-4,"date":"2024-03-01","description":"x"}`, "amount"},
		{"bad date", `{"userId":"1","category":"Food","amount":1,"date":"03/01/2024","description":"x"}`, "date"},
		{"blank description", `{"userId":"1","category":"Food","amount":1,"date":"2024-03-01","description":" "}`, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/expenses", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if body := decode[errorBody](t, rec); !strings.Contains(body.Error, tt.want) {
				t.Fatalf("error = %q, want mention of %q", body.Error, tt.want)
			}
		})
	}
	if evs := env.publisher.Events(); len(evs) != 0 {
		t.Fatalf("rejected writes published %d events", len(evs))
	}
}

func TestListExpenses_Cache(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	env.do(t, http.MethodGet, "/expenses?userId=1", "")
	env.do(t, http.MethodGet, "/expenses?userId=1", "")
	env.do(t, http.MethodPost, "/expenses",
		`{"userId":"1","category":"Bills","amount":9,"date":"2024-03-08","description":"Phone"}`)
	rec := env.do(t, http.MethodGet, "/expenses?userId=1", "")
	if list := decode[[]core.Expense](t, rec); len(list) != 4 {
		t.Fatalf("write did not invalidate the cache: %d items", len(list))
	}

	body := env.do(t, http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{
		`expense_gateway_cache_lookups_total{result="hit"} 1`,
		`expense_gateway_cache_lookups_total{result="miss"} 2`,
		`expense_gateway_expenses_total{operation="create"} 1`,
		`expense_gateway_http_requests_total{code="201",method="POST",route="/expenses`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 2}, nil)

	for i := range 2 {
		body := fmt.Sprintf(`{"username":"user%d","password":"pw"}`, i)
		if rec := env.do(t, http.MethodPost, "/users", body); rec.Code != http.StatusCreated {
			t.Fatalf("write %d status = %d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/users", `{"username":"user9","password":"pw"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rec := env.do(t, http.MethodGet, "/users", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads should not be limited, got %d", rec.Code)
	}
	if !strings.Contains(env.do(t, http.MethodGet, "/metrics", "").Body.String(), "expense_gateway_rate_limited_total 1") {
		t.Fatal("rate limited counter not incremented")
	}
}

type pingFailRepo struct {
	storage.Repository
}

func (pingFailRepo) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}

	down := newTestEnv(t, Config{}, pingFailRepo{Repository: memory.New()})
	if rec := down.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store = %d", rec.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	rec := env.do(t, http.MethodGet, "/expenses", "")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
	if rec := env.do(t, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	env.publisher.Err = errors.New("broker down")

	rec := env.do(t, http.MethodPost, "/expenses",
		`{"userId":"2","category":"Shopping","amount":"30.10","date":"2024-03-07","description":"Shoes"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	body := env.do(t, http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(body, `expense_gateway_events_published_total{outcome="error",type="expense.created"} 1`) {
		t.Fatal("failed publish not counted")
	}
}
