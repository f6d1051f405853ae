// Package apperr defines the error taxonomy shared by services and HTTP
// handlers.  Services return an *Error (or wrap one of the kind sentinels);
// handlers turn it into a status code and a short machine-readable reason.
package apperr

import (
	"errors"
	"net/http"
)

// Kind sentinels.  Compare with errors.Is.
var (
	ErrValidation       = errors.New("validation")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrTokenRejected    = errors.New("token rejected")
	ErrGateway          = errors.New("gateway")
	ErrInternal         = errors.New("internal")
)

// Error pairs a kind with the reason string reported to clients.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

// New returns an *Error of the given kind.
func New(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap returns an *Error of the given kind that also carries cause for logs.
func Wrap(kind error, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Reason + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Reason
}

// Is lets errors.Is match both the kind sentinel and the exact *Error value.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrTokenRejected):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Reason returns the client-facing reason for err.  Errors outside the
// taxonomy are reported as "internal_error" so no detail leaks.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrGateway):
		return "gateway_error"
	}
	return "internal_error"
}
