// Package errs provides the error type shared by every pgtool layer.
//
// Config loading, the session, the executor and the CSV transfer code wrap
// their native errors into *errs.Error before returning them. The CLI and the
// interactive shell print the message on a single line; callers that need to
// branch use the Is* predicates instead of inspecting driver errors.
//
//	if errs.IsNoData(err) {
//	    // statement produced no columns to export
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error without exposing driver-specific codes.
type Kind int

const (
	KindUnknown       Kind = iota
	KindConfig             // missing, unreadable or conflicting configuration
	KindConnection         // cannot establish or keep the connection
	KindQuery              // the database rejected a statement
	KindNoData             // an export source produced no columns
	KindImport             // CSV header or row shape mismatch
	KindSessionClosed      // operation attempted after Close
	KindInvalidInput       // bad arguments from the operator
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	case KindNoData:
		return "no_data"
	case KindImport:
		return "import"
	case KindSessionClosed:
		return "session_closed"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across pgtool.
type Error struct {
	Kind    Kind
	Message string
	Cause   error // original error, kept for errors.Is/As and debug logs
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrSessionClosed is returned by every session operation after Close.
var ErrSessionClosed = &Error{Kind: KindSessionClosed, Message: "session is closed"}

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message and underlying cause.
// An existing *Error cause keeps its own kind so that wrapping never
// reclassifies a failure.
func Wrap(kind Kind, msg string, cause error) *Error {
	var e *Error
	if errors.As(cause, &e) && e.Kind != KindUnknown {
		kind = e.Kind
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf extracts the Kind from any error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfig reports whether err is a configuration failure.
func IsConfig(err error) bool { return KindOf(err) == KindConfig }

// IsConnection reports whether err is a connectivity failure.
func IsConnection(err error) bool { return KindOf(err) == KindConnection }

// IsQuery reports whether err was raised by the database for a statement.
func IsQuery(err error) bool { return KindOf(err) == KindQuery }

// IsNoData reports whether an export source produced no column metadata.
func IsNoData(err error) bool { return KindOf(err) == KindNoData }

// IsImport reports whether a CSV import was rejected before touching the table.
func IsImport(err error) bool { return KindOf(err) == KindImport }

// IsSessionClosed reports whether err came from a closed session.
func IsSessionClosed(err error) bool { return KindOf(err) == KindSessionClosed }

// IsInvalidInput reports whether err was caused by bad operator input.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }
