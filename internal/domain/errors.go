package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes for categorization
const (
	// Client errors (4xx)
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnknownAction = "UNKNOWN_ACTION"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"

	// Server errors (5xx)
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeTransport      = "TRANSPORT_ERROR"
	ErrCodeServiceUnavail = "SERVICE_UNAVAILABLE"

	// Business logic errors
	ErrCodeProfileMissing = "PROFILE_MISSING"
	ErrCodeNoActivePage   = "NO_ACTIVE_PAGE"
)

// AppError is the base error type for application errors that cross the
// action API
type AppError struct {
	// Error code for programmatic handling
	Code string `json:"code"`

	// Human-readable message
	Message string `json:"message"`

	// HTTP status code
	HTTPStatus int `json:"-"`

	// Original error
	Cause error `json:"-"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value any) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithRetry marks the error as retryable
func (e *AppError) WithRetry(after time.Duration) *AppError {
	e.Retryable = true
	e.RetryAfter = after
	return e
}

// NewError creates a new AppError
func NewError(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now().UTC(),
	}
}

func ErrUnknownAction(action string) *AppError {
	return NewError(ErrCodeUnknownAction, fmt.Sprintf("unknown action: %s", action), http.StatusNotFound).
		WithMetadata("action", action)
}

func ErrRateLimited(retryAfter time.Duration) *AppError {
	return NewError(ErrCodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests).
		WithRetry(retryAfter)
}

func ErrStorage(op string, err error) *AppError {
	return NewError(ErrCodeStorage, fmt.Sprintf("storage error: %s", op), http.StatusInternalServerError).
		WithCause(err).
		WithMetadata("operation", op)
}

func ErrTransport(action Action, err error) *AppError {
	return NewError(ErrCodeTransport, fmt.Sprintf("transport error: %s", action), http.StatusBadGateway).
		WithCause(err).
		WithMetadata("action", string(action)).
		WithRetry(5 * time.Second)
}

func ErrServiceUnavailable(service string) *AppError {
	return NewError(ErrCodeServiceUnavail, fmt.Sprintf("Service unavailable: %s", service), http.StatusServiceUnavailable).
		WithMetadata("service", service).
		WithRetry(30 * time.Second)
}

func ErrProfileMissing() *AppError {
	return NewError(ErrCodeProfileMissing, MissingProfileMessage, http.StatusUnprocessableEntity)
}

func ErrNoActivePage() *AppError {
	return NewError(ErrCodeNoActivePage, "No active page to fill", http.StatusConflict)
}

// AsAppError converts an error to AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode returns the error code for an error
func GetErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternal
}

// DomainError is a structured error for domain operations
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for error comparison
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel domain errors (used with errors.Is)
var (
	ErrNotFoundVal     = &DomainError{Code: ErrCodeNotFound, Message: "not found"}
	ErrInvalidInputVal = &DomainError{Code: ErrCodeValidation, Message: "invalid input"}
)

// NotFoundError creates a not found domain error
func NotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
		Err:     ErrNotFoundVal,
	}
}

// ValidationError creates a validation domain error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]any{"field": field},
		Err:     ErrInvalidInputVal,
	}
}
