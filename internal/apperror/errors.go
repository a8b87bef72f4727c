package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindConnection    Kind = "connection"
	KindAuth          Kind = "auth"
	KindTimeout       Kind = "timeout"
	KindStateConflict Kind = "state_conflict"
	KindInvalid       Kind = "invalid"
	KindInternal      Kind = "internal"
)

// Error is a classified error carrying the operation and session it happened in
type Error struct {
	Kind      Kind
	Op        string
	SessionID string
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.SessionID != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Op, e.SessionID, msg)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause
func New(kind Kind, op, sessionID, msg string) *Error {
	return &Error{Kind: kind, Op: op, SessionID: sessionID, Msg: msg}
}

// Wrap classifies err. If err already carries a kind it is kept as the cause
// but the new kind wins.
func Wrap(kind Kind, op, sessionID string, err error) *Error {
	return &Error{Kind: kind, Op: op, SessionID: sessionID, Err: err}
}

// Wrapf classifies err with an additional message
func Wrapf(kind Kind, op, sessionID string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, SessionID: sessionID, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code returned by the control API
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindStateConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
