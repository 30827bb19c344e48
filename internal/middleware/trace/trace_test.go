package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "expensetracker/internal/log"
)

func TestMiddleware_AssignsRequestIDAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: "json", Output: &buf, Component: applog.ComponentHTTP})

	var seenID string
	var observed struct {
		route  string
		status int
	}
	m := NewMiddleware(logger,
		func(*http.Request) string { return "198.51.100.1" },
		WithRoute(func(*http.Request) string { return "/expenses/{id}" }),
		WithObserver(func(route, method string, status int, elapsed time.Duration) {
			observed.route, observed.status = route, status
		}),
	)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		applog.FromContext(r.Context()).Info("handling")
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/expenses/9", nil))

	if !strings.HasPrefix(seenID, "req_") || rec.Header().Get(RequestIDHeader) != seenID {
		t.Fatalf("request id %q, header %q", seenID, rec.Header().Get(RequestIDHeader))
	}
	if observed.route != "/expenses/{id}" || observed.status != http.StatusNotFound {
		t.Fatalf("observer got %+v", observed)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"handling"`, `"request_id":"` + seenID + `"`, `"status_code":404`, `"client_ip":"198.51.100.1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestMiddleware_HonorsIncomingRequestID(t *testing.T) {
	logger := applog.New(applog.Config{Format: "json", Output: &bytes.Buffer{}})
	h := NewMiddleware(logger, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for id, keep := range map[string]bool{"abc-123": true, "bad id!": false} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader) == id; got != keep {
			t.Errorf("id %q kept = %v, want %v", id, got, keep)
		}
	}
}
