// ABOUTME: This file serves the manual sync trigger and the sync status endpoint
// ABOUTME: A busy run slot maps to 409, engine errors keep their own status mapping

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"reader-sync/models"
	"reader-sync/service"
	apperrors "reader-sync/utils/errors"

	"github.com/labstack/echo/v4"
)

// recentSessionLimit caps the history slice on the status endpoint.
const recentSessionLimit = 10

// SyncCoordinator is the slice of the coordinator the sync endpoints drive.
type SyncCoordinator interface {
	RunManual(ctx context.Context) (*models.SyncSession, error)
	Status() service.CoordinatorStatus
}

// SessionHistory lists recently finished sessions, newest first.
type SessionHistory interface {
	GetRecent(ctx context.Context, limit int) ([]*models.SyncSession, error)
}

// SyncHandler exposes manual sync control and status over HTTP.
type SyncHandler struct {
	coordinator SyncCoordinator
	history     SessionHistory
	logger      *slog.Logger
}

// NewSyncHandler creates a sync handler. history may be nil when no session
// store is configured; the status endpoint then serves the slot state alone.
func NewSyncHandler(coordinator SyncCoordinator, history SessionHistory, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{
		coordinator: coordinator,
		history:     history,
		logger:      logger,
	}
}

// TriggerManual runs a manual session and blocks until it finishes. Partial
// completions are still a 200 with the session result; only a busy run slot
// or a fatal engine error maps to an error status.
func (h *SyncHandler) TriggerManual(c echo.Context) error {
	session, err := h.coordinator.RunManual(c.Request().Context())
	if err != nil {
		if errors.Is(err, service.ErrSyncAlreadyRunning) {
			return echo.NewHTTPError(http.StatusConflict, "a sync session is already running")
		}

		h.logger.Error("manual sync failed", "error", err)

		var syncErr *apperrors.SyncError
		if errors.As(err, &syncErr) {
			return echo.NewHTTPError(syncErr.HTTPStatusCode(), syncErr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "manual sync failed")
	}

	return c.JSON(http.StatusOK, session.Result())
}

type syncStatusResponse struct {
	service.CoordinatorStatus
	RecentSessions []*models.SyncSession `json:"recent_sessions,omitempty"`
}

// Status reports the run slot, the latest result and recent session summaries.
func (h *SyncHandler) Status(c echo.Context) error {
	resp := syncStatusResponse{CoordinatorStatus: h.coordinator.Status()}

	if h.history != nil {
		sessions, err := h.history.GetRecent(c.Request().Context(), recentSessionLimit)
		if err != nil {
			h.logger.Error("failed to load recent sessions", "error", err)
		} else {
			resp.RecentSessions = sessions
		}
	}

	return c.JSON(http.StatusOK, resp)
}
