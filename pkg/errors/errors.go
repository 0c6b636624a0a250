package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	// ErrInterrupted is returned when a run is stopped by a global cancellation signal.
	ErrInterrupted = errors.New("sync interrupted")
	// ErrToolUnavailable is returned when the feed source command cannot be executed.
	ErrToolUnavailable = errors.New("feed source tool unavailable")
	// ErrNoAccounts is returned when a run is started without any accounts configured.
	ErrNoAccounts = errors.New("no accounts configured")
)

// Error is a typed error carried across the feed source, fetcher and storage layers
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without an underlying cause
func New(errType ErrorType, code int, message string) *Error {
	return &Error{Type: errType, Code: code, Message: message}
}

// Wrap creates a typed error around cause
func Wrap(errType ErrorType, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Err: cause}
}

// TypeOf reports the ErrorType of err, or ErrorTypeUnknown if err carries none
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeIO, ErrorTypeConfig:
		return false
	default:
		return false
	}
}

// FromStatusCode maps a non-2xx HTTP status to a typed error
func FromStatusCode(statusCode int, url string) *Error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return New(ErrorTypeAuth, statusCode, fmt.Sprintf("access denied for %s", url))
	case statusCode == 404 || statusCode == 410:
		return New(ErrorTypeNotFound, statusCode, fmt.Sprintf("resource not found: %s", url))
	case statusCode == 408:
		return New(ErrorTypeNetwork, statusCode, fmt.Sprintf("request timeout for %s", url))
	case statusCode == 429:
		return New(ErrorTypeRateLimit, statusCode, fmt.Sprintf("rate limited on %s", url))
	case statusCode >= 500:
		return New(ErrorTypeServerError, statusCode, fmt.Sprintf("server error for %s", url))
	default:
		return New(ErrorTypeUnknown, statusCode, fmt.Sprintf("unexpected status %d for %s", statusCode, url))
	}
}
