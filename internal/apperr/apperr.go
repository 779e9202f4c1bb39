// Package apperr holds the error taxonomy shared by repositories, services
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for callers that need to react to it.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Forbidden
	Conflict
	InsufficientStock
	InvalidCredentials
	Unauthorized
	InvalidInput
	InvalidQuery
	BadRequest
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case InsufficientStock:
		return "insufficient_stock"
	case InvalidCredentials:
		return "invalid_credentials"
	case Unauthorized:
		return "unauthorized"
	case InvalidInput:
		return "invalid_input"
	case InvalidQuery:
		return "invalid_query"
	case BadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the status code the API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case InsufficientStock, InvalidQuery, BadRequest:
		return http.StatusBadRequest
	case InvalidCredentials, Unauthorized:
		return http.StatusUnauthorized
	case InvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a detail string that is safe to show to clients.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Detail == ""
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound           = &Error{Kind: NotFound}
	ErrForbidden          = &Error{Kind: Forbidden}
	ErrConflict           = &Error{Kind: Conflict}
	ErrInsufficientStock  = &Error{Kind: InsufficientStock}
	ErrInvalidCredentials = &Error{Kind: InvalidCredentials}
	ErrUnauthorized       = &Error{Kind: Unauthorized}
	ErrInvalidInput       = &Error{Kind: InvalidInput}
	ErrInvalidQuery       = &Error{Kind: InvalidQuery}
	ErrBadRequest         = &Error{Kind: BadRequest}
)

// New builds a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// DetailOf returns the client-facing message for err. Unclassified errors
// never leak their text.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return "internal server error"
}

// Sanitize turns a raw driver message into something safe to embed in a JSON detail.
func Sanitize(msg string) string {
	return strings.ReplaceAll(msg, `"`, `'`)
}
