package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	logpkg "github.com/benvon/restaurant-finder/internal/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const healthCheckTimeout = 5 * time.Second

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	checks map[string]CheckFunc
	logger *zap.Logger
}

// NewHealthChecker creates a health checker. Dependencies are added with AddCheck.
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc), logger: logger}
}

// AddCheck registers a named dependency check for extended mode.
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.checks[name] = check
}

// RegisterRoutes registers /healthz and /api/ping.
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/ping", h.Ping).Methods(http.MethodGet)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. With mode=extended every
// registered dependency is checked and any failure answers 503.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = h.runChecks(r.Context())
		for _, result := range response.Checks {
			if result != "healthy" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed_to_encode_health_response", zap.Error(err))
	}
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := h.checks[name](checkCtx)
		cancel()
		if err != nil {
			h.logger.Warn("health_check_failed",
				zap.String("check", name),
				zap.String("error", logpkg.SanitizeError(err)),
			)
			results[name] = "unhealthy"
			continue
		}
		results[name] = "healthy"
	}
	return results
}

// Ping answers {"message":"pong"}.
func (h *HealthChecker) Ping(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}
