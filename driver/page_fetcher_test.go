// ABOUTME: Tests for the article page fetcher using httptest servers

package driver

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "reader-sync/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFetcher_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><p>article body</p></body></html>"))
	}))
	defer server.Close()

	fetcher := NewPageFetcher(newTestLogger())

	page, err := fetcher.FetchPage(context.Background(), server.URL+"/post")
	require.NoError(t, err)
	assert.Contains(t, page, "article body")
}

func TestPageFetcher_FetchPage_DecodesLegacyCharset(t *testing.T) {
	// "café" in ISO-8859-1: the é is a single 0xE9 byte.
	latin1 := []byte{'c', 'a', 'f', 0xE9}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(latin1)
	}))
	defer server.Close()

	fetcher := NewPageFetcher(newTestLogger())

	page, err := fetcher.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "café", page)
}

func TestPageFetcher_FetchPage_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewPageFetcher(newTestLogger())

	_, err := fetcher.FetchPage(context.Background(), server.URL)
	require.Error(t, err)

	var syncErr *apperrors.SyncError
	require.True(t, stderrors.As(err, &syncErr))
	assert.Equal(t, apperrors.CodeNotFound, syncErr.Code)
	assert.False(t, syncErr.IsRetryable())
}

func TestPageFetcher_FetchRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/robots.txt", r.URL.Path)
		w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	}))
	defer server.Close()

	fetcher := NewPageFetcher(newTestLogger())

	serverURL := server.URL[len("http://"):]
	robots, err := fetcher.FetchRobots(context.Background(), "http", serverURL)
	require.NoError(t, err)
	require.NotNil(t, robots)

	group := robots.FindGroup("reader-sync/1.0")
	assert.True(t, group.Test("/public/page"))
	assert.False(t, group.Test("/private/page"))
}

func TestPageFetcher_FetchRobots_MissingAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewPageFetcher(newTestLogger())

	serverURL := server.URL[len("http://"):]
	robots, err := fetcher.FetchRobots(context.Background(), "http", serverURL)
	require.NoError(t, err)
	assert.True(t, robots.TestAgent("/anything", "reader-sync/1.0"))
}
