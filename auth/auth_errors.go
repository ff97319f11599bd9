package auth

import (
	"errors"
	"fmt"
)

// Kind classifies every failure this core reports. Lower-level faults are
// always translated to one of these before returning to the caller; raw
// error text from hashing, signing or persistence never leaks out.
type Kind string

const (
	KindConflict     Kind = "conflict"       // duplicate registration
	KindBadRequest   Kind = "bad_request"    // malformed or invalid OTP/token payload
	KindUnauthorized Kind = "unauthorized"   // bad credentials, invalid/expired/revoked tokens
	KindNotFound     Kind = "not_found"      // unknown account
	KindForbidden    Kind = "forbidden"      // reserved for ownership checks in collaborator modules
	KindProvider     Kind = "provider_error" // identity provider anomalies
	KindInternal     Kind = "internal"       // unexpected fault, detail logged server-side only
)

// Error is the typed failure surface of the orchestrator.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two *Error values by kind, so callers can test against the
// kind sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrBadRequest   = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrProvider     = &Error{Kind: KindProvider, Message: "provider error"}
	ErrInternal     = &Error{Kind: KindInternal, Message: "internal error"}
)

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the failure kind of err, or KindInternal when err is not a
// typed failure from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
