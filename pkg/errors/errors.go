package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUpstream    ErrorType = "upstream"
	ErrorTypeStore       ErrorType = "store"
	ErrorTypeTranscode   ErrorType = "transcode"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a service error with type information.
// Code carries the HTTP status associated with the failure when one exists
// (an upstream response status, or the status a handler should emit).
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error
func New(errorType ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// StatusCode returns the HTTP status to report for the error, falling back
// to 500 when the error carries no usable status
func (e *Error) StatusCode() int {
	if e.Code >= 400 && e.Code <= 599 {
		return e.Code
	}
	return 500
}
