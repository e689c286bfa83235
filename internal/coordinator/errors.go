package coordinator

import (
	"errors"
	"fmt"

	"segcheck/internal/locks"
	"segcheck/internal/navigation"
	"segcheck/internal/protocol"
	"segcheck/internal/segment"
	"segcheck/internal/session"
)

// Kind classifies a failed request.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindLockConflict Kind = "lock_conflict"
	KindStore        Kind = "store"
	KindSession      Kind = "session"
	KindProtocol     Kind = "protocol"
	KindNotFound     Kind = "not_found"
	// KindAudio is an extraction failure after the save and release
	// committed. The request must not be resent; a plain next recovers.
	KindAudio Kind = "audio"
)

// Error is a classified request failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind reports the classification as a string.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// Retryable reports whether the client may resend the same request.
func (e *Error) Retryable() bool {
	return e.Kind == KindStore
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify wraps err with the kind implied by its sentinel.
func classify(op string, err error) *Error {
	var coordErr *Error
	if errors.As(err, &coordErr) {
		return coordErr
	}
	var sessErr *session.SessionError
	switch {
	case errors.As(err, &sessErr), errors.Is(err, session.ErrUnknownSession):
		return newError(KindSession, op, err)
	case errors.Is(err, locks.ErrLockConflict), errors.Is(err, locks.ErrNotLocked):
		return newError(KindLockConflict, op, err)
	case errors.Is(err, segment.ErrNotFound):
		return newError(KindNotFound, op, err)
	case errors.Is(err, segment.ErrInvalid), errors.Is(err, segment.ErrUnknownStatus),
		errors.Is(err, navigation.ErrInvalidIndex):
		return newError(KindValidation, op, err)
	case errors.Is(err, protocol.ErrEmptyPayload):
		return newError(KindProtocol, op, err)
	default:
		return newError(KindStore, op, err)
	}
}

// KindOf returns the classification of err, or an empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return classify("", err).Kind
}
