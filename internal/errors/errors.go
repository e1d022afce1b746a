// Package errors provides typed errors for the investing monitor.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fetch and API paths.
var (
	// ErrInvalidCredentials indicates the provider rejected the stored
	// credentials. Terminal until the user reconfigures them.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthExpired indicates the provider token is no longer accepted.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNetwork indicates a transient transport failure.
	ErrNetwork = errors.New("network error")

	// ErrPortfolioNotFound indicates the portfolio no longer exists upstream.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrDecode indicates an unexpected provider response shape.
	ErrDecode = errors.New("decode error")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a resource conflict (e.g., duplicate).
	ErrConflict = errors.New("resource conflict")

	// ErrValidation indicates a validation error.
	ErrValidation = errors.New("validation error")

	// ErrRateLimit indicates too many requests.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")
)

// AppError is a structured application error.
type AppError struct {
	// Type is the error type (sentinel error).
	Type error
	// Message is the user-facing error message.
	Message string
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error type.
func (e *AppError) Unwrap() error {
	return e.Type
}

// Is checks if this error matches the target.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Type, target)
}

// New creates a new AppError.
func New(errType error, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(errType error, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return &AppError{
		Type:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Type:    ErrConflict,
		Message: message,
	}
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return &AppError{
		Type:    ErrValidation,
		Message: message,
	}
}

// IsInvalidCredentials checks if an error is an invalid credentials error.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsPortfolioNotFound checks if an error is a portfolio not found error.
func IsPortfolioNotFound(err error) bool {
	return errors.Is(err, ErrPortfolioNotFound)
}

// IsTransient reports whether an error should be retried on the next
// scheduled wake rather than surfaced as a persistent notification.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrDecode) || errors.Is(err, ErrAuthExpired)
}

// Stable error kind names used in logs, fetch history and notifications.
const (
	KindInvalidCredentials = "invalid_credentials"
	KindAuthExpired        = "auth_expired"
	KindPortfolioNotFound  = "portfolio_not_found"
	KindDecode             = "decode_error"
	KindNetwork            = "network_error"
	KindNotFound           = "not_found"
	KindConflict           = "conflict"
	KindValidation         = "validation"
	KindInternal           = "internal"
)

// Kind returns a short stable name for an error, suitable for logs and
// fetch history rows.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrPortfolioNotFound):
		return KindPortfolioNotFound
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPortfolioNotFound):
		return 404
	case errors.Is(err, ErrInvalidCredentials):
		return 401
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrRateLimit):
		return 429
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrAuthExpired), errors.Is(err, ErrDecode):
		return 502
	default:
		return 500
	}
}
