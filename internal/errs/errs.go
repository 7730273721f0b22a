// Package errs defines the closed error-kind taxonomy shared by every
// Sigil component, following the shape of the teacher's consensus.TxError.
package errs

import "fmt"

// Kind is the closed enum of error categories a Sigil operation can fail
// with. Kind is non-exhaustive in the sense that new values may be added
// in future revisions, but callers should not assume their own set is
// complete either: always check via errors.As, not a type switch on Kind.
type Kind string

const (
	KindDiskFormat       Kind = "DISK_FORMAT_INVALID"
	KindDiskExpired      Kind = "DISK_EXPIRED"
	KindDiskBlocked      Kind = "DISK_BLOCKED"
	KindPresigExhausted  Kind = "PRESIG_EXHAUSTED"
	KindPresigNotFound   Kind = "PRESIG_NOT_FOUND"
	KindPresigUsed       Kind = "PRESIG_ALREADY_USED"
	KindRPointMismatch   Kind = "R_POINT_MISMATCH"
	KindRPointCollision  Kind = "R_POINT_COLLISION"
	KindSignatureInvalid Kind = "SIGNATURE_INVALID"
	KindChildNotFound    Kind = "CHILD_NOT_FOUND"
	KindChildNullified   Kind = "CHILD_NULLIFIED"
	KindChildSuspended   Kind = "CHILD_SUSPENDED"
	KindBadTransition    Kind = "ILLEGAL_STATUS_TRANSITION"
	KindAccumulatorStale Kind = "ACCUMULATOR_VERSION_STALE"
	KindWitnessInvalid   Kind = "WITNESS_INVALID"
	KindAuthFailed       Kind = "AUTH_FAILED"
	KindAuthLockedOut    Kind = "AUTH_LOCKED_OUT"
	KindSessionExpired   Kind = "SESSION_EXPIRED"
	KindReconcileFailed  Kind = "RECONCILE_FAILED"
	KindIO               Kind = "IO_ERROR"
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
)

// Error is the one concrete error type used across Sigil's internal
// packages. It carries a closed Kind plus a free-form message and wraps
// an optional underlying cause for errors.Is/errors.As chains.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New builds a *Error with a formatted message, mirroring the teacher's
// txerr(code, msg) constructor.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error carrying an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
