package util

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on code and message so that errors built with NewAppError from a
// sentinel still satisfy errors.Is against that sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func NewAppError(code int, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrNotFound          = &AppError{Code: 404, Message: "Not found"}
	ErrInternalServer    = &AppError{Code: 500, Message: "Internal server error"}
	ErrBadRequest        = &AppError{Code: 400, Message: "Bad request"}
	ErrBackendStatus     = &AppError{Code: 502, Message: "Backend returned non-OK status"}
	ErrCircuitOpen       = &AppError{Code: 503, Message: "Backend circuit open"}
	ErrMalformedResponse = &AppError{Code: 502, Message: "Malformed backend response"}
)

// BackendStatusError describes a non-2xx answer from the backend API.
func BackendStatusError(endpoint string, status int) *AppError {
	return NewAppError(ErrBackendStatus.Code, ErrBackendStatus.Message,
		fmt.Sprintf("%s: %d %s", endpoint, status, http.StatusText(status)))
}

func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    500,
		Message: message,
		Details: err.Error(),
	}
}

func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Details != "" {
		return fmt.Sprintf("%s: %s", appErr.Message, appErr.Details)
	}
	return fmt.Sprintf("%v", err)
}
