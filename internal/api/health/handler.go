package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"advisor/pkg/logger"
)

// Checker is a dependency that can report its own health (redis, kafka, ...)
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a plain function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Checker
	startTime   time.Time
	serviceName string
	version     string
	now         func() time.Time
}

// New creates a new health check handler. Optional dependencies are added with AddCheck.
func New(log *logger.Logger, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		checks:      make(map[string]Checker),
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
		now:         time.Now,
	}
}

// AddCheck registers a dependency probed by the readiness endpoint
func (h *Handler) AddCheck(name string, c Checker) {
	if c != nil {
		h.checks[name] = c
	}
}

// Status is the /health response body
type Status struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessStatus represents the overall readiness of the service
type ReadinessStatus struct {
	Status    string                     `json:"status"` // "ready", "unavailable"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleHealth reports that the process is serving requests
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Status{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness checks the optional dependencies.
// Used by Kubernetes readiness probe
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]ComponentHealth, len(names))
	allHealthy := true
	for _, name := range names {
		result := h.probe(ctx, h.checks[name])
		checks[name] = result
		if result.Status != "healthy" {
			allHealthy = false
		}
	}

	status := ReadinessStatus{
		Status:    "ready",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    humanize.RelTime(h.startTime, h.now(), "", ""),
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		status.Status = "unavailable"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}

	writeJSON(w, statusCode, status)
}

func (h *Handler) probe(ctx context.Context, c Checker) ComponentHealth {
	start := time.Now()
	err := c.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}
	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
