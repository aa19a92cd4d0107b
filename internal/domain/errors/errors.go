package errors

import (
	"fmt"
	"net/http"
)

// Error codes used across the module. Every public operation returns either a
// value or an AppError carrying one of these codes; raw storage-driver errors
// never cross the domain boundary.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeStorage            = "STORAGE_ERROR"
	CodeStorageConflict    = "STORAGE_CONFLICT"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is a custom error type for application errors
type AppError struct {
	Code       string
	Message    string
	StatusCode int // Same rule as HTTP status codes
	Err        error
	Details    map[string]interface{}
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements the errors.Is interface
func (e AppError) Is(target error) bool {
	if target, ok := target.(AppError); ok {
		return target.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e AppError) WithDetails(details map[string]interface{}) AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error
func (e AppError) WithDetail(key string, value interface{}) AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a new validation error. Field-level messages go
// into Details via WithDetails.
func NewValidationError(message string) AppError {
	return AppError{
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewStorageError creates a new storage error. The operation it aborted must
// leave prior durable state untouched.
func NewStorageError(message string, err error) AppError {
	return AppError{
		Code:       CodeStorage,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewStorageConflictError creates a retryable storage error for a failed
// optimistic version check.
func NewStorageConflictError(message string) AppError {
	return AppError{
		Code:       CodeStorageConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInvariantViolationError creates an error for an operation that would
// break the balance invariant and therefore must not apply at all.
func NewInvariantViolationError(message string) AppError {
	return AppError{
		Code:       CodeInvariantViolation,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) AppError {
	return AppError{
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) AppError {
	return AppError{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) AppError {
	return AppError{
		Code:       CodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) AppError {
	return AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsStorageConflict reports whether err is a retryable version conflict.
func IsStorageConflict(err error) bool {
	return HasCode(err, CodeStorageConflict)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}
