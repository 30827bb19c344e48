// Package server is the gateway's HTTP front: a json-server compatible
// document API over a storage.Repository.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/events"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/storage"
)

// Config tunes the server. Zero values fall back to the defaults below.
type Config struct {
	Addr               string
	CacheTTL           time.Duration
	CacheSize          int
	CacheSweep         time.Duration
	RateLimitPerMinute int
	TrustedProxies     []string
	// Now stamps createdAt and event timestamps; tests pin it.
	Now func() time.Time
}

type Server struct {
	http.Server

	repo      storage.Repository
	publisher events.Publisher
	logger    *applog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	clientIP *security.ClientIP
	limiter  *ratelimit.Limiter

	// listings caches GET /expenses bodies per owner.
	listings *cache.LRUCache[[]core.Expense]
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// New wires the router, middleware and background sweepers. Call Shutdown
// to release them.
func New(cfg Config, repo storage.Repository, publisher events.Publisher, logger *applog.Logger, m *metrics.Metrics) (*Server, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheSweep <= 0 {
		cfg.CacheSweep = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}

	clientIP, err := security.NewClientIP(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		metrics:   m,
		now:       cfg.Now,
		clientIP:  clientIP,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
		listings: cache.NewLRUCache[[]core.Expense](cfg.CacheSize, cfg.CacheTTL),
		caches:   cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog()),
	}
	s.caches.Register(s.listings)
	s.caches.StartCleanup(cfg.CacheSweep)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(s.logger, s.clientIP.Extract,
		trace.WithRoute(routePattern),
		trace.WithObserver(s.metrics.ObserveRequest))
	r.Use(tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	limitWrites := s.limiter.Middleware(s.clientIP.Extract, s.rejectRateLimited)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.handleListUsers)
		r.Get("/{id}", s.handleGetUser)
		r.With(limitWrites).Post("/", s.handleCreateUser)
		r.With(limitWrites).Patch("/{id}", s.handleUpdateUser)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", s.handleListExpenses)
		r.Get("/{id}", s.handleGetExpense)
		r.With(limitWrites).Post("/", s.handleCreateExpense)
		r.With(limitWrites).Delete("/{id}", s.handleDeleteExpense)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, struct{}{})
	})
	return r
}

// routePattern labels metrics by route so ids do not explode cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.Extract(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops background sweepers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
