// ABOUTME: Structured error type carrying code, layer context and cause chain
// ABOUTME: Retryability is derived from the code so the retry layer needs no type switches

package errors

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Error codes produced by the engine. NETWORK, RATE_LIMIT, SERVER and TIMEOUT
// errors are retryable; the rest abort after the first attempt.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND_ERROR"
	CodeForbidden   = "FORBIDDEN_ERROR"
	CodeParse       = "PARSE_ERROR"
	CodeDataError   = "DATA_ERROR"
	CodeNetwork     = "NETWORK_ERROR"
	CodeRateLimit   = "RATE_LIMIT_ERROR"
	CodeServerError = "SERVER_ERROR"
	CodeTimeout     = "TIMEOUT_ERROR"
	CodeDatabase    = "DATABASE_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
)

// SyncError represents an error with rich context information.
type SyncError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Layer     string                 `json:"layer,omitempty"`
	Component string                 `json:"component,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	ErrorID   string                 `json:"-"`
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	var prefix string
	if e.Layer != "" && e.Component != "" && e.Operation != "" {
		prefix = fmt.Sprintf("[%s:%s:%s] ", e.Layer, e.Component, e.Operation)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s (caused by: %v)", prefix, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Code, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the error represents a transient condition.
func (e *SyncError) IsRetryable() bool {
	switch e.Code {
	case CodeNetwork, CodeRateLimit, CodeServerError, CodeTimeout:
		return true
	default:
		return false
	}
}

// HTTPStatusCode maps error codes to HTTP status codes.
func (e *SyncError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeNetwork, CodeServerError:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// generateErrorID generates a short unique error ID for log correlation.
func generateErrorID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

// New creates a SyncError with full context.
func New(code, message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	if context == nil {
		context = make(map[string]interface{})
	}

	return &SyncError{
		Code:      code,
		Message:   message,
		Layer:     layer,
		Component: component,
		Operation: operation,
		Cause:     cause,
		Context:   context,
		ErrorID:   generateErrorID(),
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message, layer, component, operation string, context map[string]interface{}) *SyncError {
	return New(CodeValidation, message, layer, component, operation, nil, context)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message, layer, component, operation string, context map[string]interface{}) *SyncError {
	return New(CodeNotFound, message, layer, component, operation, nil, context)
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeForbidden, message, layer, component, operation, cause, context)
}

// NewParseError creates a parse error for malformed content.
func NewParseError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeParse, message, layer, component, operation, cause, context)
}

// NewNetworkError creates a network error.
func NewNetworkError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeNetwork, message, layer, component, operation, cause, context)
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeRateLimit, message, layer, component, operation, cause, context)
}

// NewServerError creates a remote server error.
func NewServerError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeServerError, message, layer, component, operation, cause, context)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeTimeout, message, layer, component, operation, cause, context)
}

// NewDatabaseError creates a database error.
func NewDatabaseError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeDatabase, message, layer, component, operation, cause, context)
}

// NewInternalError creates an internal error.
func NewInternalError(message, layer, component, operation string, cause error, context map[string]interface{}) *SyncError {
	return New(CodeInternal, message, layer, component, operation, cause, context)
}

// NewDataError creates an error for a missing or invalid local record.
func NewDataError(message, layer, component, operation string, context map[string]interface{}) *SyncError {
	return New(CodeDataError, message, layer, component, operation, nil, context)
}
