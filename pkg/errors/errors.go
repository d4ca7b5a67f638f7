package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeFetch       ErrorType = "fetch"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeDownload    ErrorType = "download"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a Pinboard pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthError reports a failed login. Wrong credentials and a missing
// redirect are deliberately indistinguishable.
func NewAuthError(message string, code int) *Error {
	return &Error{Type: ErrorTypeAuth, Message: message, Code: code}
}

// NewFetchError reports a failed index page fetch
func NewFetchError(path string, code int, cause error) *Error {
	msg := fmt.Sprintf("failed to fetch %s", path)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{Type: ErrorTypeFetch, Message: msg, Code: code, Err: cause}
}

// IsType reports whether err (or anything it wraps) is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	return IsType(err, ErrorTypeAuth)
}

// IsFetch reports whether err is a crawl fetch failure
func IsFetch(err error) bool {
	return IsType(err, ErrorTypeFetch)
}

// TypeForStatusCode maps an HTTP status code onto an ErrorType
func TypeForStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
