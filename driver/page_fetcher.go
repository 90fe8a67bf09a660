// ABOUTME: HTTP driver fetching external article pages and robots.txt
// ABOUTME: Handles charset conversion and response size limits for extraction

package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "reader-sync/utils/errors"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

const (
	// maxPageBytes caps how much of an article page is read. Anything useful
	// for extraction fits well under this.
	maxPageBytes   = 1 << 20
	maxRobotsBytes = 512 << 10
)

// PageFetcher downloads external article pages for full-content extraction.
type PageFetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewPageFetcher creates a page fetcher with a 30 second request timeout.
func NewPageFetcher(logger *slog.Logger) *PageFetcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &PageFetcher{
		userAgent: userAgent,
		logger:    logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   2,
			},
		},
	}
}

// SetHTTPClient allows injecting a custom HTTP client for tests.
func (f *PageFetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// FetchPage downloads an article page and returns its HTML decoded to UTF-8.
func (f *PageFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", apperrors.NewValidationError(
			"invalid page URL",
			"driver", "page_fetcher", "fetch_page",
			map[string]interface{}{"url": pageURL})
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError("page_fetcher", "fetch_page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.New(
			apperrors.CodeForHTTPStatus(resp.StatusCode),
			fmt.Sprintf("page fetch failed with status %d", resp.StatusCode),
			"driver", "page_fetcher", "fetch_page",
			nil,
			map[string]interface{}{
				"status_code": resp.StatusCode,
				"url":         pageURL,
			})
	}

	var body io.Reader = io.LimitReader(resp.Body, maxPageBytes)
	if utf8Body, err := charset.NewReader(body, resp.Header.Get("Content-Type")); err == nil {
		body = utf8Body
	} else {
		f.logger.Debug("Charset detection failed, reading raw bytes",
			"url", pageURL,
			"content_type", resp.Header.Get("Content-Type"),
			"error", err)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", apperrors.NewNetworkError(
			"failed to read page body",
			"driver", "page_fetcher", "fetch_page", err, nil)
	}

	return string(raw), nil
}

// FetchRobots fetches and parses robots.txt for a host. Status semantics
// follow the robots exclusion standard: a 404 allows everything, a 401/403
// disallows everything.
func (f *PageFetcher) FetchRobots(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, apperrors.NewValidationError(
			"invalid robots.txt URL",
			"driver", "page_fetcher", "fetch_robots",
			map[string]interface{}{"url": robotsURL})
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("page_fetcher", "fetch_robots", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, apperrors.NewNetworkError(
			"failed to read robots.txt body",
			"driver", "page_fetcher", "fetch_robots", err, nil)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, apperrors.NewParseError(
			"failed to parse robots.txt",
			"driver", "page_fetcher", "fetch_robots", err,
			map[string]interface{}{"host": host})
	}

	return data, nil
}
