package facts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorClass represents whether a text service error should be retried or not.
type ErrorClass int

const (
	// ErrorClassRetryable indicates the call may succeed if repeated (transient errors).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates the call should not be repeated (permanent errors).
	ErrorClassFatal
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ServiceError is returned by generators. Class records whether the failure
// is transient; StatusCode is set for HTTP failures.
type ServiceError struct {
	Class      ErrorClass
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("text service (%s, status %d): %v", e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("text service (%s): %v", e.Class, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func retryable(status int, err error) *ServiceError {
	return &ServiceError{Class: ErrorClassRetryable, StatusCode: status, Err: err}
}

func fatal(status int, err error) *ServiceError {
	return &ServiceError{Class: ErrorClassFatal, StatusCode: status, Err: err}
}

// ClassifyStatus maps an HTTP status to an error class.
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return ErrorClassRetryable
	case code >= 500:
		return ErrorClassRetryable
	case code >= 400:
		return ErrorClassFatal
	default:
		return ErrorClassUnknown
	}
}

// ClassifyServiceError classifies text service errors into retryable vs fatal categories.
//
// Typed *ServiceError values carry their own class. For untyped errors:
//
// Fatal errors (non-retryable):
// - Caller cancellation
// - Authentication/authorization errors (401/403, invalid api key)
// - Bad requests (400/404, unknown model, context length)
//
// Retryable errors (transient):
// - Deadlines and network timeouts
// - Server errors (500, 502, 503, 504)
// - Rate limiting (429, quota, resource exhausted)
// - Connection failures
//
// Unknown errors are treated as retryable; the retry policy decides whether
// another attempt is made at all.
func ClassifyServiceError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return se.Class
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassRetryable
	}

	lower := strings.ToLower(err.Error())

	// Check retryable server errors first (before more generic patterns)
	serverPatterns := []string{
		"500", "502", "503", "504",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	}
	for _, pattern := range serverPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassRetryable
		}
	}

	fatalPatterns := []string{
		"401", "403", "400", "404",
		"unauthorized",
		"permission denied",
		"invalid api key",
		"incorrect api key",
		"invalid_argument",
		"model not found",
		"does not exist",
		"context length",
	}
	for _, pattern := range fatalPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassFatal
		}
	}

	rateLimitPatterns := []string{
		"429",
		"too many requests",
		"rate limit",
		"resource_exhausted",
		"quota",
	}
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassRetryable
		}
	}

	networkPatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"no such host",
		"eof",
		"broken pipe",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassRetryable
		}
	}

	return ErrorClassRetryable
}

// IsRetryableError checks if an error may be retried.
func IsRetryableError(err error) bool {
	return ClassifyServiceError(err) == ErrorClassRetryable
}

// IsFatalError checks if an error should not be retried.
func IsFatalError(err error) bool {
	return ClassifyServiceError(err) == ErrorClassFatal
}
