// Package service implements the reservation lifecycle manager, the
// expiry sweeper and the error taxonomy shared by both.  Business-rule
// failures travel as explicit *Error values carrying a Kind; nothing in
// this package panics or throws control flow through recover.
package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an operation failure.  Handlers map kinds to
// HTTP statuses; callers inside the process branch on them to decide
// whether re-reading fresh state could help (Conflict) or the request
// itself was at fault (Validation, NotFound, Authorization).
type ErrorKind int

const (
	// KindValidation marks missing or out-of-range input.
	KindValidation ErrorKind = iota + 1
	// KindNotFound marks an absent product or reservation.
	KindNotFound
	// KindAuthorization marks a caller acting on a reservation they
	// do not own without administrative capability.
	KindAuthorization
	// KindConflict marks a failed transaction condition: insufficient
	// stock, an already-resolved reservation, or a concurrent mutation
	// that won the race.  Retrying requires re-deriving fresh state.
	KindConflict
	// KindInternal marks a storage or broker fault unrelated to
	// business conditions.
	KindInternal
)

// Error is the structured failure result returned by every lifecycle
// operation.  The underlying transaction either fully committed or
// fully aborted before an Error is produced; there is no partial state
// to clean up.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidation builds a validation failure.
func NewValidation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// NewNotFound builds a not-found failure.
func NewNotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// NewAuthorization builds an ownership failure.
func NewAuthorization(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }

// NewConflict builds a conflict failure.
func NewConflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// NewInternal wraps an unexpected fault.
func NewInternal(msg string, err error) *Error { return &Error{Kind: KindInternal, Message: msg, Err: err} }

// KindOf extracts the kind from err, defaulting to KindInternal for
// anything that is not a *Error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
