package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration indicates the store or a subsystem is not configured; never retried
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"
	// ErrorTypeNotFound indicates a key or record was absent, as opposed to unreachable
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeTransport indicates a network or timeout failure; retryable
	ErrorTypeTransport ErrorType = "TRANSPORT"
	// ErrorTypeIntegrity indicates a referential-integrity violation
	ErrorTypeIntegrity ErrorType = "INTEGRITY"
	// ErrorTypeConflict indicates a conflict with existing state
	ErrorTypeConflict ErrorType = "CONFLICT"
	// ErrorTypeBadRequest indicates invalid input
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(errorType ErrorType, message string) error {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps an error with an application error
func Wrap(errorType ErrorType, message string, err error) error {
	return &AppError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// Configuration creates a configuration error
func Configuration(message string) error {
	return New(ErrorTypeConfiguration, message)
}

// NotFound creates a not found error
func NotFound(message string) error {
	return New(ErrorTypeNotFound, message)
}

// Transport creates a transport error
func Transport(message string, err error) error {
	return Wrap(ErrorTypeTransport, message, err)
}

// Integrity creates an integrity error
func Integrity(message string) error {
	return New(ErrorTypeIntegrity, message)
}

// Conflict creates a conflict error
func Conflict(message string) error {
	return New(ErrorTypeConflict, message)
}

// BadRequest creates a bad request error
func BadRequest(message string) error {
	return New(ErrorTypeBadRequest, message)
}

// Internal creates an internal error
func Internal(message string) error {
	return New(ErrorTypeInternal, message)
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return isType(err, ErrorTypeConfiguration)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return isType(err, ErrorTypeTransport)
}

// IsIntegrity checks if an error is an integrity error
func IsIntegrity(err error) bool {
	return isType(err, ErrorTypeIntegrity)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return isType(err, ErrorTypeBadRequest)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrorTypeInternal)
}
