// ABOUTME: This file serves manual retention sweeps and the active policy surface
// ABOUTME: The dry_run query flag is advisory; the policy's own flag still wins

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"reader-sync/models"

	"github.com/labstack/echo/v4"
)

// RetentionSweeper runs retention passes and reports the active policy.
type RetentionSweeper interface {
	Run(ctx context.Context, dryRun bool) (*models.CleanupResult, error)
	Policy() models.RetentionPolicy
}

// RetentionHandler exposes on-demand retention runs over HTTP.
type RetentionHandler struct {
	sweeper RetentionSweeper
	logger  *slog.Logger
}

// NewRetentionHandler creates a retention handler.
func NewRetentionHandler(sweeper RetentionSweeper, logger *slog.Logger) *RetentionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionHandler{sweeper: sweeper, logger: logger}
}

// Run executes one retention pass. The dry_run query parameter counts eligible
// rows without deleting; it defaults to false when absent.
func (h *RetentionHandler) Run(c echo.Context) error {
	dryRun := false
	if raw := c.QueryParam("dry_run"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "dry_run must be a boolean")
		}
		dryRun = parsed
	}

	result, err := h.sweeper.Run(c.Request().Context(), dryRun)
	if err != nil {
		h.logger.Error("retention run failed", "error", err, "dry_run", dryRun)
		return echo.NewHTTPError(http.StatusInternalServerError, "retention run failed")
	}

	return c.JSON(http.StatusOK, result)
}

// GetPolicy serves the active retention policy.
func (h *RetentionHandler) GetPolicy(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sweeper.Policy())
}
