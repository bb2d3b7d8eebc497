package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hongminglow/loan-be/internal/auth"
	"github.com/hongminglow/loan-be/internal/authz"
	"github.com/hongminglow/loan-be/internal/config"
	"github.com/hongminglow/loan-be/internal/events"
	"github.com/hongminglow/loan-be/internal/http/handlers"
	"github.com/hongminglow/loan-be/internal/http/respond"
	"github.com/hongminglow/loan-be/internal/loan"
	"github.com/hongminglow/loan-be/internal/logger"
	"github.com/hongminglow/loan-be/internal/metrics"
	"github.com/hongminglow/loan-be/internal/middleware"
	"github.com/hongminglow/loan-be/internal/ratelimit"
	"github.com/hongminglow/loan-be/internal/storage"
	"github.com/hongminglow/loan-be/internal/uploads"
	"github.com/hongminglow/loan-be/internal/users"
)

// Deps are the process-level collaborators built by main.
type Deps struct {
	Store     storage.Store
	Publisher events.Publisher
	Limiter   ratelimit.Limiter
	Avatars   *uploads.Store
	Logger    *slog.Logger
	Registry  *prometheus.Registry
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
	cfg   config.Config
	users *users.Service
	log   *slog.Logger
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(deps.Registry)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	gate := authz.NewGate(deps.Store)
	userService := users.NewService(deps.Store, deps.Publisher, log)
	loanService := loan.NewService(deps.Store, loan.Options{
		Publisher:    deps.Publisher,
		Metrics:      collector,
		Logger:       log,
		ListAnyStaff: cfg.LoanListAnyStaff,
	})

	guards := handlers.Guards{
		Authenticated: func(next http.Handler) http.Handler {
			return middleware.RequireAuth(tokenManager, log, next)
		},
		Privileged: func(next http.Handler) http.Handler {
			return middleware.RequireAuth(tokenManager, log, middleware.RequireCapabilities(gate, log, next))
		},
	}
	if deps.Limiter != nil {
		guards.Throttled = func(route string, next http.Handler) http.Handler {
			return middleware.RateLimit(deps.Limiter, collector, log, route, next)
		}
	}

	mux := http.NewServeMux()
	var pinger handlers.Pinger
	if p, ok := deps.Store.(handlers.Pinger); ok {
		pinger = p
	}
	handlers.NewHealthHandler(time.Now(), pinger).Register(mux)
	handlers.NewAuthHandler(userService, tokenManager, deps.Avatars, log).Register(mux, guards)
	handlers.NewLoanHandler(loanService, log).Register(mux, guards)
	handlers.NewAdminHandler(userService, log).Register(mux, guards)
	mux.Handle("/metrics", metrics.Handler(deps.Registry))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Route not found")
	})
	if deps.Avatars != nil {
		mux.Handle(uploads.PublicPrefix, deps.Avatars.Handler())
	}

	route := func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return "unmatched"
	}
	handler := middleware.Recovery(log,
		middleware.Logging(log,
			middleware.Metrics(collector, route,
				middleware.CORS(cfg.AllowedOrigins(), mux))))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer, cfg: cfg, users: userService, log: log}
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// EnsureAdmin creates or promotes the configured bootstrap admin when no
// admin exists yet. It is a no-op without ADMIN_EMAIL and ADMIN_PASSWORD.
func (s *Server) EnsureAdmin(ctx context.Context) error {
	if !s.cfg.BootstrapAdmin() {
		return nil
	}
	admin, changed, err := s.users.EnsureAdmin(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword, s.cfg.AdminName)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if changed {
		s.log.Info("bootstrap admin ready", slog.String("user_id", admin.ID), slog.String("email", admin.Email))
	}
	return nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
