// Package apperr defines the error kinds surfaced to API clients. Each error
// carries a stable machine-readable code; the HTTP status derives from the kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an application error with a kind, a stable code and an optional payload.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int { return e.Kind.Status() }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// New builds an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Unauthenticated builds a 401 error.
func Unauthenticated(code, message string) *Error {
	return New(KindAuthentication, code, message)
}

// Forbidden builds a 403 error.
func Forbidden(code, message string) *Error {
	return New(KindAuthorization, code, message)
}

// Invalid builds a 400 error.
func Invalid(code, message string) *Error {
	return New(KindValidation, code, message)
}

// NotFound builds a 404 error.
func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Conflict builds a 409 error.
func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

// RateLimited builds a 429 error.
func RateLimited(code, message string) *Error {
	return New(KindRateLimited, code, message)
}

// Internal wraps an unexpected failure. code may be empty, in which case
// CodeInternal is used.
func Internal(code string, err error) *Error {
	if code == "" {
		code = CodeInternal
	}
	return &Error{Kind: KindInternal, Code: code, Message: "Error interno del servidor", Err: err}
}

// As returns err as *Error. Errors that are not application errors become internal errors.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(CodeInternal, err)
}

// HasCode reports whether err is an application error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
