// Package errors provides standardized domain errors with codes for zdl.
//
// Usage:
//
//	// In services - return typed errors
//	if nameTaken {
//	    return errors.Duplicate("list %q already exists", name)
//	}
//
//	// In the driver - check with errors.Is
//	if errors.Is(err, errors.ErrAllExhausted) {
//	    os.Exit(errors.ExitCodeFor(err))
//	}
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeConfig             Code = "CONFIG"
	CodeNoValidCredentials Code = "NO_VALID_CREDENTIALS"
	CodeAllExhausted       Code = "ALL_CREDENTIALS_EXHAUSTED"
	CodeUpstreamTransient  Code = "UPSTREAM_TRANSIENT"
	CodeUpstreamAuth       Code = "UPSTREAM_AUTH"
	CodeUpstreamQuota      Code = "UPSTREAM_QUOTA"
	CodeCatalog            Code = "CATALOG"
	CodeNotFound           Code = "NOT_FOUND"
	CodeDuplicate          Code = "DUPLICATE"
	CodeCancelled          Code = "CANCELLED"
)

// ExitCode returns the process exit code for an error code.
func (c Code) ExitCode() int {
	switch c {
	case CodeConfig:
		return 2
	case CodeNoValidCredentials:
		return 3
	case CodeAllExhausted:
		return 4
	case CodeCatalog, CodeNotFound, CodeDuplicate:
		return 5
	case CodeCancelled:
		return 6
	default:
		return 1
	}
}

// Error is a domain error with a code, message, and optional cause.
// Messages identify credentials by identity key only, never secrets.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// ExitCode returns the process exit code for this error.
func (e *Error) ExitCode() int {
	return e.Code.ExitCode()
}

// WithCause returns a new error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: err}
}

// Sentinel errors for errors.Is checks by code.
var (
	ErrConfig             = &Error{Code: CodeConfig, Message: "configuration error"}
	ErrNoValidCredentials = &Error{Code: CodeNoValidCredentials, Message: "no valid credentials"}
	ErrAllExhausted       = &Error{Code: CodeAllExhausted, Message: "all credentials exhausted"}
	ErrUpstreamTransient  = &Error{Code: CodeUpstreamTransient, Message: "upstream transient failure"}
	ErrUpstreamAuth       = &Error{Code: CodeUpstreamAuth, Message: "upstream authentication failed"}
	ErrUpstreamQuota      = &Error{Code: CodeUpstreamQuota, Message: "upstream download quota reached"}
	ErrCatalog            = &Error{Code: CodeCatalog, Message: "catalog error"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrDuplicate          = &Error{Code: CodeDuplicate, Message: "already exists"}
	ErrCancelled          = &Error{Code: CodeCancelled, Message: "cancelled"}
)

// Constructor helpers.

// Config creates a configuration error.
func Config(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// NoValidCredentials creates an error for a pool with no usable members.
func NoValidCredentials(format string, args ...any) *Error {
	return &Error{Code: CodeNoValidCredentials, Message: fmt.Sprintf(format, args...)}
}

// AllExhausted creates an error for a fully exhausted credential pool.
func AllExhausted(format string, args ...any) *Error {
	return &Error{Code: CodeAllExhausted, Message: fmt.Sprintf(format, args...)}
}

// Transient creates a retryable upstream error.
func Transient(format string, args ...any) *Error {
	return &Error{Code: CodeUpstreamTransient, Message: fmt.Sprintf(format, args...)}
}

// Auth creates an upstream authentication error.
func Auth(format string, args ...any) *Error {
	return &Error{Code: CodeUpstreamAuth, Message: fmt.Sprintf(format, args...)}
}

// Quota creates an upstream quota error.
func Quota(format string, args ...any) *Error {
	return &Error{Code: CodeUpstreamQuota, Message: fmt.Sprintf(format, args...)}
}

// Catalog creates a catalog error.
func Catalog(format string, args ...any) *Error {
	return &Error{Code: CodeCatalog, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Duplicate creates a duplicate/conflict error.
func Duplicate(format string, args ...any) *Error {
	return &Error{Code: CodeDuplicate, Message: fmt.Sprintf(format, args...)}
}

// Cancelled creates a cancellation error.
func Cancelled(format string, args ...any) *Error {
	return &Error{Code: CodeCancelled, Message: fmt.Sprintf(format, args...)}
}

// FromContext converts a context error into the Cancelled taxonomy.
// Deadline expiry on upstream calls is classified as transient by callers;
// this helper only handles explicit cancellation.
func FromContext(ctx context.Context) *Error {
	if err := ctx.Err(); err != nil {
		return Cancelled("operation cancelled").WithCause(err)
	}
	return nil
}

// ExitCodeFor returns the exit code for any error, defaulting to 1.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var de *Error
	if errors.As(err, &de) {
		return de.ExitCode()
	}
	return 1
}
