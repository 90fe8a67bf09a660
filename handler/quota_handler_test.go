// ABOUTME: Tests for the quota report endpoint

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reader-sync/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotaReporter struct {
	report *models.QuotaReport
}

func (s *stubQuotaReporter) Report(_ time.Time) *models.QuotaReport {
	return s.report
}

func TestQuotaHandler_Handle(t *testing.T) {
	updated := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	reporter := &stubQuotaReporter{report: &models.QuotaReport{
		Zone1:             models.ZoneReport{Used: 42, Limit: 100, Percentage: 42.0},
		Zone2:             models.ZoneReport{Used: 3, Limit: 100, Percentage: 3.0},
		ResetAfterSeconds: 1800,
		DataReliability:   models.QuotaReliabilityHeaders,
		LastHeaderUpdate:  &updated,
	}}
	h := NewQuotaHandler(reporter)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	zone1, ok := resp["zone1"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), zone1["used"])
	assert.Equal(t, float64(100), zone1["limit"])
	assert.Equal(t, 42.0, zone1["percentage"])

	assert.Equal(t, "headers", resp["dataReliability"])
	assert.Equal(t, float64(1800), resp["resetAfterSeconds"])
}
