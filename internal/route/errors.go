package route

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes route errors.
type ErrorCode string

// Usage errors: the caller broke the Route contract.
const (
	CodeNotBound        ErrorCode = "NOT_BOUND"
	CodeAlreadyBound    ErrorCode = "ALREADY_BOUND"
	CodeKindMismatch    ErrorCode = "KIND_MISMATCH"
	CodeMalformedIndex  ErrorCode = "MALFORMED_INDEX"
	CodeBufferTooSmall  ErrorCode = "BUFFER_TOO_SMALL"
	CodeUnsupportedKind ErrorCode = "UNSUPPORTED_KIND"
	CodeInvalidLayout   ErrorCode = "INVALID_LAYOUT"
	CodeInvalidOptions  ErrorCode = "INVALID_OPTIONS"
	CodeDestroyed       ErrorCode = "DESTROYED"
)

// Layout errors detected while binding.
const (
	// CodeCoverage: destination cells no source provides.
	CodeCoverage ErrorCode = "COVERAGE"
	// CodeOverlap: more than one source claims the same cell.
	CodeOverlap ErrorCode = "OVERLAP"
)

// CodeTransport wraps failures of the underlying transport.
const CodeTransport ErrorCode = "TRANSPORT"

// Error is the error type returned by every Route operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the Route operation that failed ("PrecomputeHalo", "Run", ...).
	Op string

	// PET is the reporting PET.
	PET int

	// Message is a human-readable description.
	Message string

	// Details contains additional context such as the offending PET pair.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (op=%s, pet=%d)", e.Code, e.Message, e.Op, e.PET)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, op string, pet int, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, PET: pet, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) with(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

// CodeOf returns the code of a route error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsUsageError returns true for errors caused by calling the Route out of
// contract (wrong state, kind, or buffers, or malformed inputs).
func IsUsageError(err error) bool {
	switch CodeOf(err) {
	case CodeNotBound, CodeAlreadyBound, CodeKindMismatch, CodeMalformedIndex,
		CodeBufferTooSmall, CodeUnsupportedKind, CodeInvalidLayout, CodeInvalidOptions, CodeDestroyed:
		return true
	}
	return false
}

// IsCoverageError returns true if destination cells had no source.
func IsCoverageError(err error) bool {
	return CodeOf(err) == CodeCoverage
}

// IsConfigError returns true if the layouts are inconsistent: several
// sources claim the same cell.
func IsConfigError(err error) bool {
	return CodeOf(err) == CodeOverlap
}

// IsTransportError returns true if the transport failed during Run.
func IsTransportError(err error) bool {
	return CodeOf(err) == CodeTransport
}
