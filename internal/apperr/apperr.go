// Package apperr defines the error kinds shared by the domain packages and
// their mapping onto HTTP statuses.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindValidation
)

// Error is a typed domain error. Type is a stable machine-readable name.
type Error struct {
	Kind    Kind
	Type    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Type so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Kind == t.Kind
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Type: e.Type, Message: e.Message, Err: cause}
}

// WithMessage returns a copy of the sentinel with a different message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Type: e.Type, Message: msg, Err: e.Err}
}

func NotFound(typ, msg string) *Error {
	return &Error{Kind: KindNotFound, Type: typ, Message: msg}
}

func BadRequest(typ, msg string) *Error {
	return &Error{Kind: KindBadRequest, Type: typ, Message: msg}
}

func Validation(typ, msg string) *Error {
	return &Error{Kind: KindValidation, Type: typ, Message: msg}
}

// Status returns the HTTP status for err; unknown errors are 500.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// TypeOf returns the error's Type, or "Internal" for untyped errors.
func TypeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Type != "" {
		return e.Type
	}
	return "Internal"
}

// Message returns the client-facing message. Untyped errors are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
