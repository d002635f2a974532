package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error contracts the core emits. These
// are the caller-visible vocabulary from the error handling design;
// callers switch on Kind, never on a Go type.
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "invalid_request"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindStale          ErrorKind = "stale"
	KindLowQuality     ErrorKind = "low_quality"
	KindBackpressure   ErrorKind = "backpressure"
	KindOverloaded     ErrorKind = "overloaded"
	KindBudgetExceeded ErrorKind = "budget_exceeded"
	KindCancelled      ErrorKind = "cancelled"
	KindPartial        ErrorKind = "partial"
	KindInternal       ErrorKind = "internal"
)

// Error is the structured error the core returns. Op names the
// operation that failed (e.g. "graph.AddNode"); Err, when present, is
// the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a *Error; the exported constructors below fix its
// Kind. Kind checks go through KindOf and IsKind.
func newError(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func InvalidRequest(op, msg string) *Error   { return newError(KindInvalidRequest, op, msg, nil) }
func NotFound(op, msg string) *Error         { return newError(KindNotFound, op, msg, nil) }
func Conflict(op, msg string) *Error         { return newError(KindConflict, op, msg, nil) }
func Stale(op, msg string) *Error            { return newError(KindStale, op, msg, nil) }
func LowQuality(op, msg string) *Error       { return newError(KindLowQuality, op, msg, nil) }
func Backpressure(op, msg string) *Error     { return newError(KindBackpressure, op, msg, nil) }
func Overloaded(op, msg string) *Error       { return newError(KindOverloaded, op, msg, nil) }
func BudgetExceeded(op, msg string) *Error   { return newError(KindBudgetExceeded, op, msg, nil) }
func Cancelled(op, msg string) *Error        { return newError(KindCancelled, op, msg, nil) }
func Partial(op, msg string) *Error          { return newError(KindPartial, op, msg, nil) }
func Internal(op, msg string, cause error) *Error {
	return newError(KindInternal, op, msg, cause)
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a *Error,
// and reports ok=false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is (or wraps) a *Error of the given kind.
// KindOf suits a switch over several kinds; this helper covers the
// common single-kind check.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
