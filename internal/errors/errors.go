package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Recap error code.
type ErrorCode string

const (
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"            // 400
	ErrProtectedRecord          ErrorCode = "PROTECTED_RECORD"           // 403
	ErrNotFound                 ErrorCode = "NOT_FOUND"                  // 404
	ErrNoInstructionsConfigured ErrorCode = "NO_INSTRUCTIONS_CONFIGURED" // 409
	ErrInternal                 ErrorCode = "INTERNAL"                   // 500
	ErrWriteFailure             ErrorCode = "WRITE_FAILURE"              // 500
	ErrGenerationFailure        ErrorCode = "GENERATION_FAILURE"         // 502
	ErrMalformedResponse        ErrorCode = "MALFORMED_RESPONSE"         // 502
	ErrStorageUnavailable       ErrorCode = "STORAGE_UNAVAILABLE"        // 503
)

// RecapError represents a structured error with code, status, and details.
type RecapError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *RecapError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying engine or upstream error, if any.
func (e *RecapError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RecapError {
	return &RecapError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewProtectedRecord creates a 403 error for attempts to delete the built-in instruction.
func NewProtectedRecord(id int64) *RecapError {
	return &RecapError{
		Code:    ErrProtectedRecord,
		Status:  403,
		Message: fmt.Sprintf("instruction %d is the built-in default and cannot be deleted", id),
		Details: map[string]any{"id": id},
	}
}

// NewNotFound creates a 404 error for a missing record of the given kind.
func NewNotFound(kind string, id int64) *RecapError {
	return &RecapError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %d", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewNoInstructionsConfigured creates a 409 error for an empty instruction collection.
func NewNoInstructionsConfigured() *RecapError {
	return &RecapError{
		Code:    ErrNoInstructionsConfigured,
		Status:  409,
		Message: "no instructions configured",
	}
}

// NewWriteFailure creates a 500 error for a failed write against the store.
func NewWriteFailure(err error) *RecapError {
	msg := "write failed"
	if err != nil {
		msg = "write failed: " + err.Error()
	}
	return &RecapError{
		Code:    ErrWriteFailure,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewGenerationFailure creates a 502 error for a failed upstream generation call.
func NewGenerationFailure(msg string, err error) *RecapError {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &RecapError{
		Code:    ErrGenerationFailure,
		Status:  502,
		Message: msg,
		cause:   err,
	}
}

// NewMalformedResponse creates a 502 error for upstream output that is not
// the expected structured result.
func NewMalformedResponse(msg string) *RecapError {
	return &RecapError{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: msg,
	}
}

// NewStorageUnavailable creates a 503 error when the store cannot be opened.
func NewStorageUnavailable(err error) *RecapError {
	msg := "storage unavailable"
	if err != nil {
		msg = "storage unavailable: " + err.Error()
	}
	return &RecapError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: msg,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RecapError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RecapError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a RecapError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *RecapError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// IsGenerationFailure reports whether err is a generation failure of any kind.
// MALFORMED_RESPONSE is a subtype of GENERATION_FAILURE.
func IsGenerationFailure(err error) bool {
	return Is(err, ErrGenerationFailure) || Is(err, ErrMalformedResponse)
}

// CodeOf returns the error code of err, or ErrInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var rErr *RecapError
	if stderrors.As(err, &rErr) {
		return rErr.Code
	}
	return ErrInternal
}
