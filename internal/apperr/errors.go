// Package apperr defines the domain error taxonomy shared by every component
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Test with errors.Is.
var (
	ErrNotFound          = errors.New("not_found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrInvalidArgument   = errors.New("invalid_argument")
	ErrUnavailable       = errors.New("unavailable")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// Error is a domain error: a kind, a message that is safe to show a client,
// and an optional cause that is only ever logged.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }
func Conflict(format string, args ...any) error { return newf(ErrConflict, format, args...) }
func Forbidden(format string, args ...any) error {
	return newf(ErrForbidden, format, args...)
}
func InsufficientFunds(format string, args ...any) error {
	return newf(ErrInsufficientFunds, format, args...)
}
func InvalidArgument(format string, args ...any) error {
	return newf(ErrInvalidArgument, format, args...)
}
func Unauthenticated(format string, args ...any) error {
	return newf(ErrUnauthenticated, format, args...)
}

// Unavailable wraps a transient store failure.
func Unavailable(cause error) error {
	return &Error{Kind: ErrUnavailable, Message: "data store temporarily unavailable", Cause: cause}
}

var statuses = []struct {
	kind   error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrForbidden, http.StatusForbidden},
	{ErrInsufficientFunds, http.StatusPaymentRequired},
	{ErrInvalidArgument, http.StatusBadRequest},
	{ErrUnavailable, http.StatusServiceUnavailable},
	{ErrUnauthenticated, http.StatusUnauthorized},
}

// HTTPStatus returns the status code and machine-readable kind for err.
// Errors outside the taxonomy map to 500 / "internal".
func HTTPStatus(err error) (int, string) {
	for _, s := range statuses {
		if errors.Is(err, s.kind) {
			return s.status, s.kind.Error()
		}
	}
	return http.StatusInternalServerError, "internal"
}

// PublicMessage returns the text a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if status, kind := HTTPStatus(err); status != http.StatusInternalServerError {
		return kind
	}
	return "internal error"
}
