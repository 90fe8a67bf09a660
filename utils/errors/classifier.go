// ABOUTME: Unified error classifier for retry decisions
// ABOUTME: Maps transport errors and HTTP statuses onto the engine error codes

package errors

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is never retryable (caller initiated)
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Context deadline exceeded is retryable (timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// SyncError with explicit retryable flag
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.IsRetryable()
	}

	// Network OpError with syscall errors
	var opNetErr *net.OpError
	if errors.As(err, &opNetErr) {
		if opNetErr.Err != nil {
			if errno, ok := opNetErr.Err.(syscall.Errno); ok {
				switch errno {
				case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
					return true
				}
			}
		}
		if opNetErr.Timeout() {
			return true
		}
	}

	// Generic net.Error (timeout only, Temporary() is deprecated)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsRetryableHTTPStatus determines if an HTTP status code indicates a
// retryable condition.
func IsRetryableHTTPStatus(status int) bool {
	switch {
	case status >= 500 && status <= 599:
		return true
	case status == 408: // Request Timeout
		return true
	case status == 429: // Too Many Requests
		return true
	default:
		return false
	}
}

// CodeForHTTPStatus maps an HTTP status code onto the engine error taxonomy.
func CodeForHTTPStatus(status int) string {
	switch {
	case status == 404:
		return CodeNotFound
	case status == 401 || status == 403:
		return CodeForbidden
	case status == 408:
		return CodeTimeout
	case status == 429:
		return CodeRateLimit
	case status >= 500 && status <= 599:
		return CodeServerError
	case status >= 400 && status < 500:
		return CodeValidation
	default:
		return CodeInternal
	}
}

// CodeOf extracts the engine error code from an error chain. Errors that are
// not SyncErrors are classified by their transport characteristics.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	if IsRetryable(err) {
		return CodeNetwork
	}

	return CodeInternal
}
