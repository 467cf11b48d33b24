// Package errors provides structured error types for appmap.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping without leaking raw storage errors to callers
//
// # Error Codes
//
// The diagram subsystem surfaces three domain kinds:
//   - STREAM_NOT_ALLOWED: the stream is not in the configured allow-list (HTTP 404)
//   - DIAGRAM_LOAD_FAILED: data access failed while building or merging (HTTP 200, error field)
//   - LAYOUT_SAVE_FAILED: a layout write failed (HTTP 500)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeStreamNotAllowed, "stream %q is not allowed", name)
//	if errors.Is(err, errors.ErrCodeStreamNotAllowed) {
//	    // render 404
//	}
//
//	// Wrap storage failures
//	err := errors.Wrap(errors.ErrCodeDiagramLoadFailed, origErr, "load stream %s", name)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Diagram subsystem
	ErrCodeStreamNotAllowed  Code = "STREAM_NOT_ALLOWED"
	ErrCodeDiagramLoadFailed Code = "DIAGRAM_LOAD_FAILED"
	ErrCodeLayoutSaveFailed  Code = "LAYOUT_SAVE_FAILED"

	// Input and resource errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeConflict     Code = "CONFLICT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix or cause.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status the API responds with.
// DIAGRAM_LOAD_FAILED maps to 200 because the diagram endpoint renders an
// empty diagram with the error surfaced in the body.
func HTTPStatus(code Code) int {
	switch code {
	case ErrCodeStreamNotAllowed, ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeDiagramLoadFailed:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
