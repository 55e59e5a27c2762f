package errors

import (
	stderrors "errors"
	"net/http"
)

// Codes shared by the server and the terminal client.
const (
	CodeInternal        = "internal_error"
	CodeUnauthorized    = "unauthorized"
	CodeInvalidJSON     = "invalid_json"
	CodeInvalidSettings = "invalid_settings"
	CodeStateConflict   = "state_conflict"
	CodeHTTP            = "http_error"
)

// APIError is the error body every handler writes and the client decodes.
type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// WithDetails attaches details and returns e.
func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

// Permanent reports a client error that resending the same request cannot
// fix. 401 is excluded so queued work survives until the next login.
func (e *APIError) Permanent() bool {
	switch e.Status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, CodeInternal, message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	return New(http.StatusConflict, code, message).WithDetails(details)
}

// HasCode reports whether err wraps an *APIError with the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return stderrors.As(err, &apiErr) && apiErr.Code == code
}
