// Package apperr defines the error taxonomy shared by the store, services and
// HTTP layer. Errors compare by Kind, so errors.Is(err, apperr.ErrNotFound)
// holds for any not-found error regardless of its message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindBackendFailure Kind = iota
	KindNotAuthenticated
	KindForbidden
	KindInvalidInput
	KindNotFound
	KindVendorConflict
	KindOutOfStock
	KindInsufficientStock
	KindIllegalTransition
	KindVendorBlocked
)

func (k Kind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "NotAuthenticated"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindVendorConflict:
		return "VendorConflict"
	case KindOutOfStock:
		return "OutOfStock"
	case KindInsufficientStock:
		return "InsufficientStock"
	case KindIllegalTransition:
		return "IllegalTransition"
	case KindVendorBlocked:
		return "VendorBlocked"
	}
	return "BackendFailure"
}

// Error is a classified failure with an optional underlying cause
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrBackendFailure    = &Error{Kind: KindBackendFailure}
	ErrNotAuthenticated  = &Error{Kind: KindNotAuthenticated, Msg: "sign in required"}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrVendorConflict    = &Error{Kind: KindVendorConflict}
	ErrOutOfStock        = &Error{Kind: KindOutOfStock}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrIllegalTransition = &Error{Kind: KindIllegalTransition}
	ErrVendorBlocked     = &Error{Kind: KindVendorBlocked}
)

// New creates a classified error
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s not found: %s", entity, id)}
}

// Backend wraps a transport or store failure. Already classified errors are
// returned unchanged so store-level NotFound survives the service layer.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindBackendFailure, Msg: op, Err: err}
}

// KindOf returns the kind of err, BackendFailure for unclassified errors
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBackendFailure
}
