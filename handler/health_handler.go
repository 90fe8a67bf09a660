// ABOUTME: This file serves the health endpoint with per-dependency probes
// ABOUTME: Any failing probe degrades the overall status to 503

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
)

// probeTimeout bounds the dependency checks.
const probeTimeout = 2 * time.Second

// Pinger is the reachability probe shared by the database pool and the
// stream publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health from live dependency probes.
type HealthHandler struct {
	db     Pinger
	stream Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. Either probe may be nil and is
// then skipped.
func NewHealthHandler(db, stream Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{db: db, stream: stream, logger: logger}
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Version    string            `json:"version"`
	Timestamp  string            `json:"timestamp"`
}

// Handle probes the configured dependencies and serves the aggregate status.
func (h *HealthHandler) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	components := map[string]string{}
	healthy := true

	for name, probe := range map[string]Pinger{"database": h.db, "stream": h.stream} {
		if probe == nil {
			continue
		}
		if err := probe.Ping(ctx); err != nil {
			h.logger.Warn("health probe failed", "component", name, "error", err)
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	resp := healthResponse{
		Status:     "healthy",
		Components: components,
		Version:    serviceVersion(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if !healthy {
		resp.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func serviceVersion() string {
	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		return v
	}
	return "unknown"
}
