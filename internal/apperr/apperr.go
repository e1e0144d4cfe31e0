// Package apperr defines the error kinds a split run can fail with.
//
// Every failure surfaced by the pipeline is an *Error carrying one Kind, so
// callers can branch with errors.Is against the kind sentinels while the
// original cause stays reachable through errors.Unwrap.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is never produced by this module; it is the zero value.
	KindUnknown Kind = iota
	// KindUnreadableSource means the input bytes are not a workbook or the sheet is missing.
	KindUnreadableSource
	// KindMissingColumn means the grouping column is absent from the table.
	KindMissingColumn
	// KindSerializationFailure means a group could not be rendered to a workbook.
	KindSerializationFailure
	// KindInvalidRequest means the caller passed an unusable option (bad mode, empty column).
	KindInvalidRequest
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrUnreadableSource     = errors.New("unreadable source")
	ErrMissingColumn        = errors.New("missing column")
	ErrSerializationFailure = errors.New("serialization failure")
	ErrInvalidRequest       = errors.New("invalid request")
)

// String returns the stable name of the kind, used as the JSON error code.
func (k Kind) String() string {
	switch k {
	case KindUnreadableSource:
		return "unreadable_source"
	case KindMissingColumn:
		return "missing_column"
	case KindSerializationFailure:
		return "serialization_failure"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnreadableSource:
		return ErrUnreadableSource
	case KindMissingColumn:
		return ErrMissingColumn
	case KindSerializationFailure:
		return ErrSerializationFailure
	case KindInvalidRequest:
		return ErrInvalidRequest
	default:
		return nil
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	// Msg is the human-readable description shown to the caller.
	Msg string
	// Group is the display label of the offending group, if any.
	Group string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Group != "" {
		msg = fmt.Sprintf("%s (group %q)", msg, e.Group)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New builds an *Error of the given kind.
func New(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Unreadable wraps err as an UnreadableSource failure.
func Unreadable(err error, format string, args ...any) *Error {
	return New(KindUnreadableSource, err, format, args...)
}

// MissingColumn reports that column is not among available.
func MissingColumn(column string, available []string) *Error {
	return New(KindMissingColumn, nil, "column %q not found — available columns: %v", column, available)
}

// Serialization wraps err as a SerializationFailure for the named group.
func Serialization(group string, err error) *Error {
	e := New(KindSerializationFailure, err, "could not write group")
	e.Group = group
	return e
}

// Invalid reports a bad request option.
func Invalid(format string, args ...any) *Error {
	return New(KindInvalidRequest, nil, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
