package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jobfill/jobfill/internal/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// envelope is the write side of Response
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents an API error
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(envelope{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// JSONError writes a JSON error response
func JSONError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// ErrorFromDomain converts a domain error to HTTP response
func ErrorFromDomain(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		JSONError(w, domainErrorToStatus(domainErr), domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		if appErr.Retryable && appErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(appErr.RetryAfter.Seconds())))
		}
		JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Metadata)
		return
	}

	JSONError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "Internal server error", nil)
}

func domainErrorToStatus(err *domain.DomainError) int {
	switch err.Code {
	case domain.ErrCodeNotFound, domain.ErrCodeUnknownAction:
		return http.StatusNotFound
	case domain.ErrCodeValidation, domain.ErrCodeBadRequest:
		return http.StatusBadRequest
	case domain.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrCodeProfileMissing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes JSON from request body
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return domain.ValidationError("body", "request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return domain.ValidationError("body", "invalid JSON: "+err.Error())
	}

	return nil
}

// DecodeResponse reads an enveloped response. A failed response is returned
// as a *domain.AppError carrying the server's code and message; on success
// the data field is decoded into v when v is non-nil.
func DecodeResponse(resp *http.Response, v any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 300 {
			return domain.NewError(domain.ErrCodeTransport, http.StatusText(resp.StatusCode), resp.StatusCode)
		}
		return fmt.Errorf("decoding response envelope: %w", err)
	}

	if !env.Success || resp.StatusCode >= 300 {
		appErr := domain.NewError(domain.ErrCodeInternal, http.StatusText(resp.StatusCode), resp.StatusCode)
		if env.Error != nil {
			appErr.Code = env.Error.Code
			appErr.Message = env.Error.Message
			appErr.Metadata = env.Error.Details
		}
		return appErr
	}

	if v == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
