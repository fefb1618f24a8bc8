package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-studio/internal/api/shared"
)

// healthCheckTimeout bounds a single dependency check.
const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports service health.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler running the named checks.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		checks: checks,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// Health handles GET /health. It returns 503 when any check fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	shared.RespondWithJSON(w, r, status, resp)
}
