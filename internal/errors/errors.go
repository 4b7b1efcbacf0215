// Package errors defines the service error taxonomy. Every failure that can
// cross the HTTP boundary is a ServiceError carrying the status code it maps
// to; anything else is treated as an internal error by the handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class on the wire.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeMethodNotAllowed    Code = "method_not_allowed"
	CodeUnauthorized        Code = "unauthorized"
	CodeInvalidPassphrase   Code = "invalid_passphrase"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeRateLimitExceeded   Code = "rate_limit_exceeded"
	CodeInternal            Code = "internal_error"
	CodeExchangeUnavailable Code = "exchange_unavailable"
)

// ServiceError is an error with an HTTP status mapping and optional
// structured details.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value pair and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Validation reports invalid client input.
func Validation(format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Code:       CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusBadRequest,
	}
}

// MethodNotAllowed reports an HTTP method the route does not serve.
func MethodNotAllowed(method string) *ServiceError {
	return &ServiceError{
		Code:       CodeMethodNotAllowed,
		Message:    fmt.Sprintf("method %s not allowed", method),
		HTTPStatus: http.StatusMethodNotAllowed,
	}
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "unauthorized"
	}
	return &ServiceError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidPassphrase reports a webhook passphrase mismatch.
func InvalidPassphrase() *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidPassphrase,
		Message:    "invalid passphrase",
		HTTPStatus: http.StatusForbidden,
	}
}

// NotFound reports a missing resource.
func NotFound(format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusNotFound,
	}
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Code:       CodeConflict,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusConflict,
	}
}

// RateLimitExceeded reports that the caller exhausted its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return (&ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}).WithDetails("limit", limit).WithDetails("window", window)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}

// ExchangeUnavailable wraps a failed exchange API call. The upstream venue
// answered with an error or did not answer at all, so the request maps to a
// bad gateway rather than a client fault.
func ExchangeUnavailable(cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeExchangeUnavailable,
		Message:    "exchange API error",
		HTTPStatus: http.StatusBadGateway,
		cause:      cause,
	}
}

// GetServiceError extracts a ServiceError from err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}
