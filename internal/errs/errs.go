// Package errs defines stable error codes for all failure modes of the
// scan-and-verify pipeline.
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigError indicates bad globs, an empty path set, or a malformed
	// flag combination. Fatal, reported before any work starts.
	ConfigError ErrorCode = "CONFIG_ERROR"
	// RuleLoadError indicates a duplicate rule id, unknown language tag,
	// or pattern compile failure. Fatal, aborts before file processing.
	RuleLoadError ErrorCode = "RULE_LOAD_ERROR"
	// ParseError indicates a single file failed to parse. Recovered
	// locally and surfaced as a file-scoped diagnostic.
	ParseError ErrorCode = "PARSE_ERROR"
	// StaleFile indicates edit application failed because the on-disk
	// content changed since the file was scanned.
	StaleFile ErrorCode = "STALE_FILE"
	// SnapshotMismatch indicates a rewrite output differed from its
	// stored snapshot during rule verification.
	SnapshotMismatch ErrorCode = "SNAPSHOT_MISMATCH"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// New creates a coded error.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the error code carried by err, or InternalError if err
// carries none.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return InternalError
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ConfigError, RuleLoadError:
		return true
	}
	return false
}
