// Package tableerrors defines the error taxonomy for the table-file
// substrate: the kinds raised by the varint codec, the Sorted Byte Map,
// memory regions, and the index writer. Each is a typed Error carrying a
// Kind so callers can classify failures with errors.Is/errors.As instead
// of matching on message text.
package tableerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by the condition that raised it.
type Kind string

const (
	// MalformedVarint is raised by the varint decoder when a varint
	// never terminates within its byte budget.
	MalformedVarint Kind = "MALFORMED_VARINT"
	// IndexOutOfBounds is raised by SBM.Get for an out-of-range index.
	IndexOutOfBounds Kind = "INDEX_OUT_OF_BOUNDS"
	// UseAfterFree is raised by any operation on a released Region.
	UseAfterFree Kind = "USE_AFTER_FREE"
	// DoubleFree is raised when a Region is released more than once.
	DoubleFree Kind = "DOUBLE_FREE"
	// OrderingViolation is raised when a builder receives keys out of
	// ascending order.
	OrderingViolation Kind = "ORDERING_VIOLATION"
	// IoError wraps a propagated error from the append-only file sink.
	IoError Kind = "IO_ERROR"
	// WriterClosed is raised when Write/Add is called after Finish.
	WriterClosed Kind = "WRITER_CLOSED"
)

// Error is the single error type this module raises. Programmer-error
// kinds (IndexOutOfBounds, UseAfterFree, DoubleFree, OrderingViolation,
// WriterClosed) are meant to fail fast; IoError and MalformedVarint are
// meant to propagate to the caller for handling.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

// New creates an Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap creates an Error of the given kind wrapping cause, preserving it
// for errors.Is/errors.As via Unwrap.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap enables errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Kind, letting
// errors.Is(err, tableerrors.New(tableerrors.DoubleFree, "")) work as a
// kind check regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Of reports whether err is (or wraps) a tableerrors.Error of kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// WrapOrNil returns nil if err is nil, otherwise Wrap(kind, err, msg).
// Convenient at the end of a chain of deferred cleanup calls where only
// the last non-nil error matters.
func WrapOrNil(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(kind, err, msg)
}
