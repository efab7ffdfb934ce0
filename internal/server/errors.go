package server

import (
	"errors"
	"net/http"
)

// Kind classifies every failure the API can report.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindAuth
	KindValidation
	KindSizeLimit
	KindBackend
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindSizeLimit:
		return "size_limit"
	case KindBackend:
		return "backend"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Status is the HTTP status code an error of this kind is rendered with.
func (k Kind) Status() int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation, KindSizeLimit:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged error returned by the auth gate and the list service.
// Msg is what the client sees; Err keeps the underlying cause (usually a
// store error) for errors.Is/As and logging.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// backendError wraps a store failure, carrying the store's message to the client.
func backendError(err error) *Error {
	return &Error{Kind: KindBackend, Msg: err.Error(), Err: err}
}

// KindOf reports the Kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	errServerNotConfigured = newError(KindConfig, "server not configured: API key is not set")
	errStoreNotBound       = newError(KindConfig, "KV store binding not configured")
	errMissingCredential   = newError(KindAuth, "missing credential: provide X-API-Key, Authorization: Bearer or api_key")
	errInvalidCredential   = newError(KindAuth, "invalid credential")
	errNotFound            = newError(KindNotFound, "not found")
)
