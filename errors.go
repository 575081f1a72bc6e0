package spl402

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrEmptyInput is returned when a required input slice is empty.
var ErrEmptyInput = errors.New("empty input")

// ErrMalformedResponse is returned when the gateway answers without any
// completion choice.
var ErrMalformedResponse = errors.New("malformed response: no completion choices")

// ErrorCategory classifies errors by how they should be handled.
type ErrorCategory string

const (
	// ErrorTransient indicates the error is temporary.
	// Examples: rate limits, temporary network issues, server overload.
	ErrorTransient ErrorCategory = "transient"

	// ErrorPermanent indicates the error is not recoverable by trying again.
	// Examples: invalid API key, insufficient credits.
	ErrorPermanent ErrorCategory = "permanent"

	// ErrorUserInput indicates the request was rejected as invalid.
	// Examples: malformed request, unknown model.
	ErrorUserInput ErrorCategory = "user_input"

	// ErrorConfiguration indicates the process is missing required settings.
	ErrorConfiguration ErrorCategory = "configuration"
)

// CategorizedError is an error that provides information about how it should be handled.
type CategorizedError interface {
	error
	Category() ErrorCategory
	StatusCode() int           // HTTP status code if applicable, 0 otherwise
	RetryAfter() time.Duration // suggested retry delay from server, 0 if not available
}

// Error is a categorized error with metadata for error handling decisions.
type Error struct {
	Msg        string
	Cat        ErrorCategory
	Code       int           // HTTP status code, 0 if not applicable
	RetryDelay time.Duration // from Retry-After header, 0 if not available
	Cause      error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.Cat
}

// StatusCode returns the HTTP status code, or 0 if not applicable.
func (e *Error) StatusCode() int {
	return e.Code
}

// RetryAfter returns the suggested retry delay, or 0 if not available.
func (e *Error) RetryAfter() time.Duration {
	return e.RetryDelay
}

// NewTransientError creates a transient error.
func NewTransientError(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Msg:        msg,
		Cat:        ErrorTransient,
		Code:       statusCode,
		RetryDelay: retryAfter,
		Cause:      cause,
	}
}

// NewPermanentError creates a permanent error.
func NewPermanentError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Msg:   msg,
		Cat:   ErrorPermanent,
		Code:  statusCode,
		Cause: cause,
	}
}

// NewUserInputError creates an error indicating the gateway rejected the request.
func NewUserInputError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Msg:   msg,
		Cat:   ErrorUserInput,
		Code:  statusCode,
		Cause: cause,
	}
}

// CategorizeStatus determines the error category from a gateway HTTP status code.
func CategorizeStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorTransient
	case code >= 500 && code < 600:
		return ErrorTransient
	case code == http.StatusUnauthorized || code == http.StatusPaymentRequired || code == http.StatusForbidden:
		return ErrorPermanent
	case code == http.StatusBadRequest || code == http.StatusNotFound || code == http.StatusUnprocessableEntity:
		return ErrorUserInput
	default:
		return ErrorPermanent
	}
}

// NewStatusError builds a categorized error for a failed gateway call.
func NewStatusError(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	switch CategorizeStatus(statusCode) {
	case ErrorTransient:
		return NewTransientError(msg, statusCode, retryAfter, cause)
	case ErrorUserInput:
		return NewUserInputError(msg, statusCode, cause)
	default:
		return NewPermanentError(msg, statusCode, cause)
	}
}

// IsTransient returns true if the error is categorized as transient.
// It checks if the error or any wrapped error implements CategorizedError.
func IsTransient(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorTransient
	}
	return false
}

// IsRateLimited reports whether the error is a 429 from the gateway.
func IsRateLimited(err error) bool {
	return StatusCodeOf(err) == http.StatusTooManyRequests
}

// StatusCodeOf returns the HTTP status code from a categorized error, or 0.
func StatusCodeOf(err error) int {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	return 0
}

// RetryAfterOf returns the retry delay from a categorized error, or 0.
func RetryAfterOf(err error) time.Duration {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.RetryAfter()
	}
	return 0
}

// ParseRetryAfter parses a Retry-After header value given in seconds or as
// an HTTP date. Returns 0 if the value is empty or cannot be parsed.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	// Try parsing as seconds (most common)
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date (RFC 7231)
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}

// ValidationError reports a missing or malformed request field.
// It never reaches the dispatcher.
type ValidationError struct {
	Field string
	Msg   string
}

// Error returns the validation message.
func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Field + " is required"
}

// Missing returns a ValidationError for an absent required field.
func Missing(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
