// Package errors provides structured error types for compgraph.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the exchange engine
//   - Machine-readable error codes for import reports
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes mirror the exchange error taxonomy:
//   - FORMAT_ERROR, VERSION_MISMATCH, MISSING_SOURCE: a document is skipped
//   - POLICY_DENIED: a mutation or creation was vetoed and is a no-op
//   - UNCREATABLE_TYPE: a type cannot be instantiated (import substitutes a placeholder)
//   - PERSISTENCE_ERROR: a store read or commit failed
//   - IO_ERROR: writing an export failed
//
// # Usage
//
//	err := errors.New(errors.ErrCodePolicyDenied, "node %s is locked", id)
//	if errors.Is(err, errors.ErrCodePolicyDenied) {
//	    // surface the message, continue with siblings
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodePersistence, origErr, "commit %s", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Document errors (the file is skipped)
	ErrCodeFormat          Code = "FORMAT_ERROR"
	ErrCodeVersionMismatch Code = "VERSION_MISMATCH"
	ErrCodeMissingSource   Code = "MISSING_SOURCE"

	// Graph mutation errors
	ErrCodePolicyDenied    Code = "POLICY_DENIED"
	ErrCodeUncreatableType Code = "UNCREATABLE_TYPE"
	ErrCodeDanglingRef     Code = "DANGLING_REFERENCE"

	// Storage and output errors
	ErrCodePersistence Code = "PERSISTENCE_ERROR"
	ErrCodeIO          Code = "IO_ERROR"

	// Lookup and input errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInvalidInput Code = "INVALID_INPUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// PolicyDenied builds the error returned when a policy gate vetoes an action.
// The gate's message is kept verbatim so callers can surface it.
func PolicyDenied(action, message string) *Error {
	if message == "" {
		message = "denied by policy"
	}
	return &Error{Code: ErrCodePolicyDenied, Message: fmt.Sprintf("%s: %s", action, message)}
}
