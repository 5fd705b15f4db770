package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies an error so handlers can pick the right status code
// without inspecting message strings.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindInvalidInput
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }
func InvalidState(msg string) error { return &Error{Kind: KindInvalidState, Msg: msg} }
func InvalidInput(msg string) error { return &Error{Kind: KindInvalidInput, Msg: msg} }

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func statusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// JSON writes v as a JSON response body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Write maps err to its HTTP status and writes the {"error": ...} body.
// Storage and other unclassified failures never leak their message.
func Write(w http.ResponseWriter, err error) {
	status := statusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	JSON(w, status, map[string]string{"error": msg})
}
