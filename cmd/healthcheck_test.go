// ABOUTME: Tests for the container health check probe

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeHealth(t *testing.T) {
	t.Run("healthy endpoint passes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		assert.NoError(t, probeHealth(srv.URL))
	})

	t.Run("degraded endpoint fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := probeHealth(srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable instance fails", func(t *testing.T) {
		err := probeHealth("http://127.0.0.1:1/v1/health")
		assert.Error(t, err)
	})
}

func TestLocalHealthURL(t *testing.T) {
	t.Run("uses the configured port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9099")
		assert.Equal(t, "http://127.0.0.1:9099/v1/health", localHealthURL())
	})

	t.Run("falls back to the default port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "")
		assert.Equal(t, "http://127.0.0.1:8080/v1/health", localHealthURL())
	})
}
