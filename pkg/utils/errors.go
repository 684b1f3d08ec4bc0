package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// AppError represents an application error with context
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`

	cause error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewAppError creates a new application error
func NewAppError(code, message string, details ...string) *AppError {
	_, file, line, _ := runtime.Caller(1)

	err := &AppError{
		Code:    code,
		Message: message,
		File:    file,
		Line:    line,
	}

	if len(details) > 0 {
		err.Details = details[0]
	}

	return err
}

// WrapAppError creates an application error that keeps cause reachable through errors.Is/As
func WrapAppError(code, message string, cause error) *AppError {
	_, file, line, _ := runtime.Caller(1)

	err := &AppError{
		Code:    code,
		Message: message,
		File:    file,
		Line:    line,
		cause:   cause,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewStorageError wraps a persistence failure. Storage errors are always
// retryable by the caller; nothing in the core retries them.
func NewStorageError(message string, cause error) *AppError {
	err := WrapAppError(ErrCodeDatabase, message, cause)
	err.Retryable = true
	return err
}

// IsTimeout reports whether err was caused by a context deadline
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// NewNotFoundError reports a missing record of the given kind
func NewNotFoundError(kind, id string) *AppError {
	return NewAppError(ErrCodeNotFound, kind+" not found", id)
}

// NewConflictError reports a record that already exists. Retrying cannot help.
func NewConflictError(kind, id string) *AppError {
	return NewAppError(ErrCodeConflict, kind+" already exists", id)
}

// NewValidationError reports malformed input
func NewValidationError(message string, details ...string) *AppError {
	return NewAppError(ErrCodeValidation, message, details...)
}

// WithStackTrace adds stack trace to the error
func (e *AppError) WithStackTrace() *AppError {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// WithRetryable marks the error as safe to retry
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// ErrorCode returns the AppError code in err's chain, or "" when there is none
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND application error
func IsNotFound(err error) bool {
	return ErrorCode(err) == ErrCodeNotFound
}

// IsValidation reports whether err is a VALIDATION_ERROR application error
func IsValidation(err error) bool {
	return ErrorCode(err) == ErrCodeValidation
}

// IsConflict reports whether err is a CONFLICT application error
func IsConflict(err error) bool {
	return ErrorCode(err) == ErrCodeConflict
}

// IsStorage reports whether err is a DATABASE_ERROR application error
func IsStorage(err error) bool {
	return ErrorCode(err) == ErrCodeDatabase
}

// IsRetryable reports whether the caller may retry the failed operation
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// Common error codes
const (
	ErrCodeDatabase      = "DATABASE_ERROR"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeMethod        = "METHOD_NOT_ALLOWED"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeLedger        = "LEDGER_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeProcessing    = "PROCESSING_ERROR"
)
