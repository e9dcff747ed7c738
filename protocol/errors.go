package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for translation at a transport boundary.
type Kind int

const (
	// KindInternal is any fault that is not one of the kinds below.
	KindInternal Kind = iota
	// KindValidation is malformed or incomplete input; safe to show the caller.
	KindValidation
	// KindFetch is a failed retrieval of a URL-supplied payload.
	KindFetch
	// KindAuth is a missing or wrong API key, or a disallowed origin.
	KindAuth
	// KindConfig is a server-side misconfiguration.
	KindConfig
)

// Fixed messages for the kinds whose details must not leak.
const (
	MessageConfig   = "API Key not configured on server"
	MessageInternal = "An unexpected internal server error occurred."
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindFetch:
		return "fetch"
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	default:
		return "internal"
	}
}

// Error is the typed error value produced by every layer of the service.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation returns a validation error with the given message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Validationf returns a validation error with a formatted message. A %w verb
// in format becomes the error's cause.
func Validationf(format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: KindValidation, Message: err.Error(), Cause: errors.Unwrap(err)}
}

// Fetch wraps the cause of a failed payload retrieval.
func Fetch(cause error) *Error {
	return &Error{Kind: KindFetch, Message: fmt.Sprintf("Failed to fetch JSON: %v", cause), Cause: cause}
}

// Auth returns an access-denied error.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Config returns a server misconfiguration error.
func Config(cause error) *Error {
	return &Error{Kind: KindConfig, Message: MessageConfig, Cause: cause}
}

// Internal wraps an unexpected fault.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: MessageInternal, Cause: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to its transport status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindFetch:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be sent back to a caller for err.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return MessageInternal
	}
	switch e.Kind {
	case KindValidation, KindFetch, KindAuth:
		return e.Error()
	case KindConfig:
		return MessageConfig
	default:
		return MessageInternal
	}
}
