// Package apperr carries the caller-visible error taxonomy across layers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	Unauthorized
	NotFound
	Conflict
	QuotaExceeded
	Invalid
	External
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case QuotaExceeded:
		return "quota_exceeded"
	case Invalid:
		return "invalid"
	case External:
		return "external"
	default:
		return "internal"
	}
}

// Error is a classified failure. System names the external collaborator
// for External errors ("vector store", "object store", ...).
type Error struct {
	Kind   Kind
	System string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels like ErrNotFound
// work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.System == "" || t.System == e.System)
}

var (
	ErrUnauthorized  = &Error{Kind: Unauthorized}
	ErrNotFound      = &Error{Kind: NotFound}
	ErrConflict      = &Error{Kind: Conflict}
	ErrQuotaExceeded = &Error{Kind: QuotaExceeded}
	ErrInvalid       = &Error{Kind: Invalid}
	ErrExternal      = &Error{Kind: External}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a message.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ExternalFailure wraps err as a failure of the named collaborator.
func ExternalFailure(system string, err error) *Error {
	return &Error{Kind: External, System: system, Msg: "error deleting from " + system, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// SystemOf returns the failing collaborator named in err's chain, if any.
func SystemOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.System
	}
	return ""
}
