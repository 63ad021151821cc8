// Package handlers holds the HTTP handlers of the API. Each handler decodes the
// request, calls one service operation and maps the result or error to JSON.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/rs/zerolog/hlog"
)

const maxJSONBody = 1 << 20

var debug atomic.Bool

// SetDebug makes error responses include the wrapped error text. Development only.
func SetDebug(on bool) { debug.Store(on) }

type errorBody struct {
	Error   string   `json:"error"`
	Errors  []string `json:"errors,omitempty"`
	Blocked bool     `json:"blocked,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps err to its status code and a stable client message.
// Server-side failures are logged and their text is withheld unless debug is on.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	body := errorBody{Error: clientMessage(err, status)}

	switch {
	case errors.Is(err, apperr.ErrValidation):
		body.Errors = apperr.Messages(err)
	case errors.Is(err, apperr.ErrBlocked):
		body.Blocked = true
	}
	if status >= 500 {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("request failed")
		if debug.Load() {
			body.Detail = err.Error()
		}
	}
	WriteJSON(w, status, body)
}

func clientMessage(err error, status int) string {
	switch {
	case errors.Is(err, apperr.ErrTokenExpired):
		return "Token expired."
	case errors.Is(err, apperr.ErrInvalidToken):
		return "Invalid token."
	case status == http.StatusUnauthorized:
		if msg, ok := apperr.Public(err); ok {
			return msg
		}
		return "Please authenticate."
	case status == http.StatusServiceUnavailable:
		return "Service temporarily unavailable. Please try again."
	case status == http.StatusGatewayTimeout:
		return "The operation timed out. Please try again."
	case status >= 500:
		return "Something went wrong."
	}
	if msg, ok := apperr.Public(err); ok {
		return msg
	}
	return err.Error()
}

// decodeJSON reads a JSON body into v, bounded to maxJSONBody bytes. An empty
// body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.Invalid("request body too large")
		}
		return apperr.Invalid("invalid JSON body")
	}
}
