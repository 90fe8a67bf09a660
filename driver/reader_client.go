// ABOUTME: HTTP driver for the remote reader API
// ABOUTME: Typed wrappers for stream contents, subscriptions and tag edits with zone header capture

package driver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reader-sync/metrics"
	"reader-sync/models"
	apperrors "reader-sync/utils/errors"
)

const (
	defaultBaseURL = "https://www.inoreader.com/reader/api/0"
	userAgent      = "reader-sync/1.0"
)

// ReaderClient is the low-level HTTP client for the remote reader API. Every
// call returns the rate-limit zone headers captured from the response so
// callers can feed the quota tracker, including on error responses: a 429
// still carries usable usage headers.
type ReaderClient struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logger      *slog.Logger
}

// NewReaderClient creates a reader API client. An empty baseURL selects the
// production endpoint.
func NewReaderClient(baseURL, accessToken string, logger *slog.Logger) *ReaderClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &ReaderClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		logger:      logger,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
			},
		},
	}
}

// SetHTTPClient allows injecting a custom HTTP client for tests.
func (c *ReaderClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// FetchStreamContents fetches one page of the reading list stream. Pass the
// continuation token from the previous page to fetch the next one.
func (c *ReaderClient) FetchStreamContents(ctx context.Context, streamID, continuation string, maxArticles int) (*models.StreamContentsResponse, models.ZoneHeaders, error) {
	endpoint := "/stream/contents/" + url.QueryEscape(streamID)
	params := url.Values{
		"output": {"json"},
		"n":      {strconv.Itoa(maxArticles)},
	}
	if continuation != "" {
		params.Set("c", continuation)
	}

	var response models.StreamContentsResponse
	headers, err := c.getJSON(ctx, "stream_contents", endpoint, params, &response)
	if err != nil {
		c.logger.Error("Failed to fetch stream contents",
			"stream_id", streamID,
			"error", err)
		return nil, headers, err
	}

	c.logger.Debug("Fetched stream contents",
		"stream_id", streamID,
		"items", len(response.Items),
		"has_continuation", response.Continuation != "")

	return &response, headers, nil
}

// FetchSubscriptionList fetches the remote subscription list.
func (c *ReaderClient) FetchSubscriptionList(ctx context.Context) (*models.SubscriptionListResponse, models.ZoneHeaders, error) {
	params := url.Values{"output": {"json"}}

	var response models.SubscriptionListResponse
	headers, err := c.getJSON(ctx, "subscription_list", "/subscription/list", params, &response)
	if err != nil {
		c.logger.Error("Failed to fetch subscription list", "error", err)
		return nil, headers, err
	}

	c.logger.Debug("Fetched subscription list",
		"subscriptions", len(response.Subscriptions))

	return &response, headers, nil
}

// EditTags adds and/or removes a state marker on a batch of articles. This is
// the write path used to push local read/starred edits back to the remote
// side before a pull.
func (c *ReaderClient) EditTags(ctx context.Context, itemIDs []string, addTag, removeTag string) (models.ZoneHeaders, error) {
	if len(itemIDs) == 0 {
		return absentZoneHeaders(), nil
	}
	if addTag == "" && removeTag == "" {
		return absentZoneHeaders(), apperrors.NewValidationError(
			"edit-tag requires at least one tag to add or remove",
			"driver", "reader_client", "edit_tag", nil)
	}

	form := url.Values{}
	for _, id := range itemIDs {
		form.Add("i", id)
	}
	if addTag != "" {
		form.Set("a", addTag)
	}
	if removeTag != "" {
		form.Set("r", removeTag)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/edit-tag", strings.NewReader(form.Encode()))
	if err != nil {
		return absentZoneHeaders(), apperrors.NewInternalError(
			"failed to create edit-tag request",
			"driver", "reader_client", "edit_tag", err, nil)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("edit_tag", "error")
		return absentZoneHeaders(), classifyTransportError("reader_client", "edit_tag", err)
	}
	defer resp.Body.Close()

	headers := ParseZoneHeaders(resp.Header)
	metrics.RecordRemoteRequest("edit_tag", strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return headers, c.statusError("edit_tag", resp, headers)
	}

	c.logger.Debug("Edited tags on remote articles",
		"items", len(itemIDs),
		"add", addTag,
		"remove", removeTag)

	return headers, nil
}

// getJSON executes an authenticated GET and decodes the JSON payload into out.
func (c *ReaderClient) getJSON(ctx context.Context, op, endpoint string, params url.Values, out interface{}) (models.ZoneHeaders, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return absentZoneHeaders(), apperrors.NewInternalError(
			"failed to create request",
			"driver", "reader_client", op, err, nil)
	}
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(op, "error")
		return absentZoneHeaders(), classifyTransportError("reader_client", op, err)
	}
	defer resp.Body.Close()

	headers := ParseZoneHeaders(resp.Header)
	metrics.RecordRemoteRequest(op, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return headers, c.statusError(op, resp, headers)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return headers, apperrors.NewParseError(
			"failed to decode API response",
			"driver", "reader_client", op, err, nil)
	}

	return headers, nil
}

func (c *ReaderClient) setCommonHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("User-Agent", userAgent)
}

// classifyTransportError maps a failed round trip to a timeout or network
// error so the retry layer can treat both as transient.
func classifyTransportError(component, op string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(
			"request timed out",
			"driver", component, op, err, nil)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError(
			"request timed out",
			"driver", component, op, err, nil)
	}

	return apperrors.NewNetworkError(
		"failed to execute request",
		"driver", component, op, err, nil)
}

// statusError maps a non-200 response to a coded error. The body is included
// truncated for debugging.
func (c *ReaderClient) statusError(op string, resp *http.Response, headers models.ZoneHeaders) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	message := fmt.Sprintf("API request failed with status %d", resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		message = fmt.Sprintf("API rate limit exceeded (zone1 %d/%d)", headers.Zone1Usage, headers.Zone1Limit)
	case http.StatusUnauthorized:
		message = "authentication failed: token may be expired or invalid"
	}

	return apperrors.New(
		apperrors.CodeForHTTPStatus(resp.StatusCode),
		message,
		"driver", "reader_client", op,
		nil,
		map[string]interface{}{
			"status_code": resp.StatusCode,
			"body":        string(body),
		})
}

// ParseZoneHeaders extracts the per-zone rate limit headers from a response.
// Absent or malformed headers come back as -1 so callers can tell "zero used"
// from "no data".
func ParseZoneHeaders(h http.Header) models.ZoneHeaders {
	return models.ZoneHeaders{
		Zone1Usage:        headerValue(h, "X-Reader-Zone1-Usage"),
		Zone1Limit:        headerValue(h, "X-Reader-Zone1-Limit"),
		Zone1Remaining:    headerValue(h, "X-Reader-Zone1-Remaining"),
		Zone2Usage:        headerValue(h, "X-Reader-Zone2-Usage"),
		Zone2Limit:        headerValue(h, "X-Reader-Zone2-Limit"),
		Zone2Remaining:    headerValue(h, "X-Reader-Zone2-Remaining"),
		ResetAfterSeconds: headerValue(h, "X-Reader-Limits-Reset-After"),
	}
}

func headerValue(h http.Header, key string) int64 {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return -1
	}
	// Some deployments send the reset value with a fractional part.
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return -1
	}
	return int64(value)
}

func absentZoneHeaders() models.ZoneHeaders {
	return models.ZoneHeaders{
		Zone1Usage:        -1,
		Zone1Limit:        -1,
		Zone1Remaining:    -1,
		Zone2Usage:        -1,
		Zone2Limit:        -1,
		Zone2Remaining:    -1,
		ResetAfterSeconds: -1,
	}
}
