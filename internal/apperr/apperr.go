// Package apperr defines the typed business errors returned by the engine.
// Every error carries a human-readable reason that can be shown to staff as is.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for HTTP mapping.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindReferenceRequired Kind = "REFERENCE_REQUIRED"
	KindSplitMismatch     Kind = "SPLIT_MISMATCH"
	KindUnavailable       Kind = "PERSISTENCE_UNAVAILABLE"
)

// Error is a business error with a kind and a reason.
type Error struct {
	Kind   Kind   `json:"code"`
	Reason string `json:"error"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target has no reason,
// so errors.Is(err, apperr.ErrConflict) works for every conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrReferenceRequired = &Error{Kind: KindReferenceRequired}
	ErrSplitMismatch     = &Error{Kind: KindSplitMismatch}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Validation creates a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Conflict creates a CONFLICT error naming the conflicting resource.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// Unavailable wraps a store failure as a retryable error.
func Unavailable(op string, err error) *Error {
	reason := op + " failed, please retry"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = op + " timed out, please retry"
	}
	return &Error{Kind: KindUnavailable, Reason: reason, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindReferenceRequired:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindSplitMismatch:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
