package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies operator-facing failures per the error taxonomy:
// configuration errors are fatal and surfaced loudly, transport errors are
// absorbed locally, liveness loss is an alert rather than a crash.
type ErrorCode string

const (
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeTransport     ErrorCode = "TRANSPORT_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code and HTTP status for the console API.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func Wrap(err error, code ErrorCode, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Cause: err}
}

func NewInvalidConfig(message string) *AppError {
	return New(ErrCodeInvalidConfig, message, http.StatusBadRequest)
}

func NewNotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewInternal(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

// Get extracts an AppError from anywhere in the chain, or nil.
func Get(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
