// Package errs provides the coded error taxonomy of the sync core.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that branch on failure kind.
type Code string

const (
	// CodeStorage marks a failed local store operation (quota, corruption).
	CodeStorage Code = "STORAGE_ERROR"
	// CodeNotFound marks a missing local record.
	CodeNotFound Code = "NOT_FOUND"
	// CodeNetwork marks a transport-level remote failure.
	CodeNetwork Code = "NETWORK_ERROR"
	// CodeAPI marks a non-2xx remote response.
	CodeAPI Code = "API_ERROR"
	// CodeQueueExhausted marks a queue entry dropped at the retry ceiling.
	CodeQueueExhausted Code = "QUEUE_EXHAUSTED"
	// CodeInvalid marks bad caller input.
	CodeInvalid Code = "INVALID_INPUT"
)

// ErrNotFound is returned by store lookups for absent records.
var ErrNotFound = &AppError{Code: CodeNotFound, Message: "record not found"}

// AppError is an error with a stable code and optional cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is comparisons against coded sentinels.
func (e *AppError) Is(target error) bool {
	var app *AppError
	if errors.As(target, &app) {
		return e.Code == app.Code
	}
	return false
}

// New creates a new AppError.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with a code.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code == code
	}
	return false
}
