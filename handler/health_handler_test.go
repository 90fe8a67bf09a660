// ABOUTME: Tests for the health endpoint probe aggregation

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err   error
	calls int
}

func (s *stubPinger) Ping(_ context.Context) error {
	s.calls++
	return s.err
}

func healthRequest() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHealthHandler_Handle(t *testing.T) {
	t.Run("healthy when every probe passes", func(t *testing.T) {
		db := &stubPinger{}
		stream := &stubPinger{}
		h := NewHealthHandler(db, stream, newTestLogger())

		c, rec := healthRequest()

		require.NoError(t, h.Handle(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, db.calls)
		assert.Equal(t, 1, stream.calls)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
		assert.NotEmpty(t, resp["version"])

		components, ok := resp["components"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ok", components["database"])
		assert.Equal(t, "ok", components["stream"])
	})

	t.Run("failing probe degrades the status", func(t *testing.T) {
		db := &stubPinger{}
		stream := &stubPinger{err: errors.New("connection refused")}
		h := NewHealthHandler(db, stream, newTestLogger())

		c, rec := healthRequest()

		require.NoError(t, h.Handle(c))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp["status"])

		components, ok := resp["components"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ok", components["database"])
		assert.Contains(t, components["stream"], "connection refused")
	})

	t.Run("nil probes are skipped", func(t *testing.T) {
		h := NewHealthHandler(nil, nil, newTestLogger())

		c, rec := healthRequest()

		require.NoError(t, h.Handle(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
		assert.NotContains(t, resp, "components")
	})
}
