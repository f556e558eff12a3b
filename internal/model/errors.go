package model

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")

	// ErrSyncBusy is returned when a cart mutation is dropped because
	// another mutation is already in flight. The accompanying Cart is the
	// last-known snapshot; callers may treat this as a no-op.
	ErrSyncBusy = errors.New("cart sync in flight")

	// ErrOriginConflict is returned when an add targets a different
	// business than the one the non-empty basket's items came from.
	ErrOriginConflict = errors.New("basket origin conflict")
)

// APIError represents a structured error for storefront operations.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	StatusCode int           `json:"-"` // upstream HTTP status, not serialized
	RetryAfter time.Duration `json:"-"` // rate-limit hint, zero if unknown
	Err        error         `json:"-"` // wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates an error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates an error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUpstreamError creates an error for backend/network failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewRateLimitError creates an error for upstream rate limiting.
// retryAfter may be zero when the backend gave no hint.
func NewRateLimitError(service string, retryAfter time.Duration) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		RetryAfter: retryAfter,
		Err:        ErrRateLimited,
	}
}

// NewUpstreamStatusError creates an error for a non-success HTTP status
// carrying the backend's own error code and message when available.
func NewUpstreamStatusError(service string, status int, code, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("%s returned status %d", service, status)
	}
	if code == "" {
		code = "UPSTREAM_ERROR"
	}
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Err:        ErrUpstreamError,
	}
}
