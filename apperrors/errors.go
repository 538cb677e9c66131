package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindExternalService:
		return "external_service"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code an error of this kind is reported with.
// Conflicts are reported as 400 because clients treat "already paid" and
// "duplicate service" as request errors.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error returned across service boundaries.
type Error struct {
	kind    Kind
	code    string
	message string
	details any
	cause   error
}

func New(kind Kind, code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

func Wrap(kind Kind, code string, err error, message string) *Error {
	return &Error{kind: kind, code: code, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Code() string {
	if e == nil {
		return "INTERNAL_ERROR"
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails returns a copy carrying details, leaving shared sentinels untouched.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.details = details
	return &cp
}

// WithCause returns a copy that wraps err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.cause = err
	return &cp
}

// WithMessage returns a copy with a different public message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.message = message
	return &cp
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code so copies of a sentinel compare equal to it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.code == t.code && e.kind == t.kind
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, treating unknown errors as internal.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind()
	}
	return KindInternal
}

// Internal wraps an unexpected failure.
func Internal(err error, message string) *Error {
	return Wrap(KindInternal, "INTERNAL_ERROR", err, message)
}

// Validation builds a request validation error.
func Validation(message string) *Error {
	return New(KindValidation, "VALIDATION_ERROR", message)
}
