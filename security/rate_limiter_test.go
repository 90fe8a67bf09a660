// ABOUTME: Tests for the per-client trigger rate limiter

package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newGuardedEcho(rl *RateLimiter) *echo.Echo {
	e := echo.New()
	e.POST("/trigger", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, rl.Middleware())
	return e
}

func trigger(e *echo.Echo, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	e := newGuardedEcho(NewRateLimiter(rate.Limit(10), 10))

	rec := trigger(e, "1.2.3.4:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	e := newGuardedEcho(NewRateLimiter(rate.Limit(1), 1))

	assert.Equal(t, http.StatusOK, trigger(e, "1.2.3.4:1234").Code)

	rec := trigger(e, "1.2.3.4:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	e := newGuardedEcho(NewRateLimiter(rate.Limit(1), 1))

	assert.Equal(t, http.StatusOK, trigger(e, "1.2.3.4:1234").Code)
	assert.Equal(t, http.StatusOK, trigger(e, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, trigger(e, "1.2.3.4:1234").Code)
}

func TestRateLimiter_BucketRefills(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1000), 1)
	e := newGuardedEcho(rl)

	assert.Equal(t, http.StatusOK, trigger(e, "1.2.3.4:1234").Code)

	// At 1000 req/s the bucket refills almost immediately.
	assert.Eventually(t, func() bool {
		return rl.Allow("1.2.3.4")
	}, time.Second, 5*time.Millisecond)
}
