package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"advisor/internal/api/health"
	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port        int
	ServiceName string
	Version     string
	ReadTimeout time.Duration
	// CrewTimeout bounds one crew run; the write timeout is derived from it
	CrewTimeout time.Duration
}

// Deps are the handlers' collaborators. Guardrail and Tracker are optional.
type Deps struct {
	Crew      Crew
	Guardrail Guard
	Tracker   RunTracker
	Health    *health.Handler
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter builds the chi router with all routes
func NewRouter(cfg ServerConfig, deps Deps, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Health check endpoints (Kubernetes probes)
	healthHandler := deps.Health
	if healthHandler == nil {
		healthHandler = health.New(log, cfg.ServiceName, cfg.Version)
	}
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/ready", healthHandler.HandleReadiness)
	r.Get("/live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	r.Method(http.MethodPost, "/crew/run", NewCrewHandler(deps.Crew, deps.Guardrail, deps.Tracker, cfg.CrewTimeout, log))

	// Root endpoint (service info)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	return r
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, deps Deps, log *logger.Logger) *Server {
	port := 8000
	if cfg.Port > 0 {
		port = cfg.Port
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(cfg, deps, log),
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.CrewTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}

// metricsMiddleware records every request under its route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.RecordHTTPRequest(route, code, time.Since(start))
	})
}
