// ABOUTME: This file serves the remote API quota report endpoint
// ABOUTME: Reliability downgrades past the header window are computed by the tracker

package handler

import (
	"net/http"
	"time"

	"reader-sync/models"

	"github.com/labstack/echo/v4"
)

// QuotaReporter supplies the current per-zone quota surface.
type QuotaReporter interface {
	Report(now time.Time) *models.QuotaReport
}

// QuotaHandler exposes remote API quota usage.
type QuotaHandler struct {
	tracker QuotaReporter
}

// NewQuotaHandler creates a quota handler.
func NewQuotaHandler(tracker QuotaReporter) *QuotaHandler {
	return &QuotaHandler{tracker: tracker}
}

// Handle serves the quota report covering both zones.
func (h *QuotaHandler) Handle(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Report(time.Now()))
}
