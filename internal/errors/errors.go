// Package errors defines the application error type shared by the stores, services and
// HTTP layer. Callers branch on ErrorCode, never on message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is a coarse category of failure.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "not_found"
	ErrCodeConflict     ErrorCode = "conflict"
	ErrCodeValidation   ErrorCode = "validation"
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeUnavailable marks a dependency (database, registry, queue) that could not be reached.
	ErrCodeUnavailable ErrorCode = "unavailable"
	ErrCodeInternal    ErrorCode = "internal"
	ErrCodeTimeout     ErrorCode = "timeout"
	ErrCodeCanceled    ErrorCode = "canceled"
)

// AppError carries a code, a client-safe message, the offending field for validation
// failures and an optional cause visible to errors.Is/As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New returns an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func NotFound(message string) *AppError     { return New(ErrCodeNotFound, message) }
func Conflict(message string) *AppError     { return New(ErrCodeConflict, message) }
func Validation(message string) *AppError   { return New(ErrCodeValidation, message) }
func Unauthorized(message string) *AppError { return New(ErrCodeUnauthorized, message) }

// ValidationField reports an invalid request field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Unavailable wraps a failed dependency call.
func Unavailable(err error, message string) *AppError {
	return &AppError{Code: ErrCodeUnavailable, Message: message, Cause: err}
}

// Is reports whether err carries an AppError with code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

func IsNotFound(err error) bool     { return Is(err, ErrCodeNotFound) }
func IsConflict(err error) bool     { return Is(err, ErrCodeConflict) }
func IsValidation(err error) bool   { return Is(err, ErrCodeValidation) }
func IsUnauthorized(err error) bool { return Is(err, ErrCodeUnauthorized) }
func IsUnavailable(err error) bool  { return Is(err, ErrCodeUnavailable) }

// GetCode returns the code of the outermost AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if appErr, ok := asAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the validation field of the outermost AppError, or "".
func GetField(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Field
	}
	return ""
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
