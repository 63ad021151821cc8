// Package apperr holds the error kinds shared by the store, services and HTTP layer.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("please authenticate")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrForbidden       = errors.New("forbidden")
	ErrUnavailable     = errors.New("service unavailable")
	ErrTimeout         = errors.New("operation timed out")
)

// ErrBlocked is returned for a deactivated user account.
var ErrBlocked = New(ErrForbidden, "Your account has been blocked. Please contact support.")

// kindError is an error of a given kind whose text is safe to show clients.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// New returns an error that matches kind and reads as msg.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Public returns the client-facing text of err if it was built with New, NotFound or Invalid.
func Public(err error) (string, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg, true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error(), true
	}
	return "", false
}

// ValidationError lists every violated rule, in the order the rules were checked.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError from one or more messages.
func Invalid(msgs ...string) error {
	return &ValidationError{Messages: msgs}
}

// NotFound wraps ErrNotFound with the name of the missing entity.
func NotFound(entity string) error {
	return New(ErrNotFound, entity+" not found")
}

// Messages returns the rule messages carried by err, or nil.
func Messages(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Messages
	}
	return nil
}

// Status maps an error to the HTTP status the API answers with. Conflict wins
// over validation for errors that match both, such as a taken slug.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
