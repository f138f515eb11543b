package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/handler"
	"github.com/teamplatform/teamplatform/internal/metrics"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/ratelimit"
	"github.com/teamplatform/teamplatform/internal/server/middleware"
	"github.com/teamplatform/teamplatform/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	PerKeyRPM       int   // secondary per-API-key throttle; 0 disables
	BaseURL         string
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
	}
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Store   *config.Store
	Auth    *service.AuthService
	Keys    *service.APIKeyService
	Audit   *audit.Recorder
	Limiter *ratelimit.Limiter
	Classes ratelimit.Classes
}

// Server is the top-level HTTP server. It owns the Chi router and the
// admission chain in front of it.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server and wires up all routes and middleware. Call Run
// to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Classes == nil {
		deps.Classes = ratelimit.DefaultClasses()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Admission(s.deps.Limiter, s.deps.Classes, s.logger))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	r.Use(chimw.Compress(5))

	system := handler.NewSystemHandler(s.deps.Store, s.cfg.Version, s.logger)
	sessions := handler.NewSessionHandler(s.deps.Auth, s.deps.Store, s.deps.Audit, s.logger)
	keys := handler.NewAPIKeyHandler(s.deps.Keys, s.deps.Audit, s.logger)
	audits := handler.NewAuditHandler(s.deps.Audit, s.logger)
	rosters := handler.NewRosterHandler(s.deps.Store, s.deps.Audit, s.logger)

	// --- Probes and descriptions (no auth required) ---
	r.Get("/healthz", system.Health)
	r.Get("/readyz", system.Ready)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.BaseURL, s.cfg.Version).ServeSpec)

	r.Route("/api", func(r chi.Router) {
		// Login is the only unauthenticated session endpoint.
		r.Post("/auth/login", sessions.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.Auth))

			r.Post("/auth/logout", sessions.Logout)
			r.Get("/auth/me", sessions.Me)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))

				r.Get("/api-keys", keys.ListAPIKeys)
				r.Post("/api-keys", keys.CreateAPIKey)
				r.Delete("/api-keys", keys.RevokeAPIKey)
				r.Delete("/api-keys/{keyId}", keys.RevokeAPIKey)

				r.Get("/audit-logs", audits.ListAuditLogs)
			})

			r.Route("/rosters", func(r chi.Router) {
				staff := middleware.RequireRole(model.RoleAdmin, model.RoleCoach)
				r.With(staff).Get("/", rosters.ListRosters)
				r.With(staff).Post("/", rosters.CreateRoster)
				r.With(middleware.RequireRole(model.RoleAdmin)).Delete("/{id}", rosters.DeleteRoster)
			})
		})

		// External API authenticated by API key.
		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.RequireAPIKey(s.deps.Keys, s.logger))
			r.Use(middleware.ThrottleByAPIKey(s.cfg.PerKeyRPM))

			r.Get("/whoami", keys.WhoAmI)
			r.With(middleware.RequirePermission("roster:read")).Get("/rosters", rosters.ListRosters)
			r.With(middleware.RequirePermission("roster:write")).Post("/rosters", rosters.CreateRoster)
		})
	})

	s.router = r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	addr := s.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
