// ABOUTME: Tests for the manual retention endpoints

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reader-sync/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	result  *models.CleanupResult
	err     error
	dryRuns []bool
}

func (s *stubSweeper) Run(_ context.Context, dryRun bool) (*models.CleanupResult, error) {
	s.dryRuns = append(s.dryRuns, dryRun)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSweeper) Policy() models.RetentionPolicy {
	return models.DefaultRetentionPolicy()
}

func retentionRequest(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRetentionHandler_Run(t *testing.T) {
	t.Run("runs a sweep and returns the result", func(t *testing.T) {
		sweeper := &stubSweeper{result: &models.CleanupResult{
			Processed: 120,
			Deleted:   115,
			Batches:   1,
		}}
		h := NewRetentionHandler(sweeper, newTestLogger())

		c, rec := retentionRequest("/v1/retention/run")

		require.NoError(t, h.Run(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []bool{false}, sweeper.dryRuns)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, float64(115), resp["deleted"])
		assert.Equal(t, false, resp["dry_run"])
	})

	t.Run("dry_run query flag is passed through", func(t *testing.T) {
		sweeper := &stubSweeper{result: &models.CleanupResult{Processed: 120, DryRun: true}}
		h := NewRetentionHandler(sweeper, newTestLogger())

		c, rec := retentionRequest("/v1/retention/run?dry_run=true")

		require.NoError(t, h.Run(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []bool{true}, sweeper.dryRuns)
	})

	t.Run("rejects a malformed dry_run flag", func(t *testing.T) {
		sweeper := &stubSweeper{result: &models.CleanupResult{}}
		h := NewRetentionHandler(sweeper, newTestLogger())

		c, _ := retentionRequest("/v1/retention/run?dry_run=maybe")

		err := h.Run(c)

		require.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Empty(t, sweeper.dryRuns)
	})

	t.Run("sweep failure maps to 500", func(t *testing.T) {
		sweeper := &stubSweeper{err: errors.New("connection refused")}
		h := NewRetentionHandler(sweeper, newTestLogger())

		c, _ := retentionRequest("/v1/retention/run")

		err := h.Run(c)

		require.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	})
}

func TestRetentionHandler_GetPolicy(t *testing.T) {
	h := NewRetentionHandler(&stubSweeper{}, newTestLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/retention/policy", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.GetPolicy(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(30), resp["read_articles_days"])
	assert.Equal(t, float64(models.StarredKeepForever), resp["starred_articles_days"])
	assert.Equal(t, true, resp["enabled"])
}
