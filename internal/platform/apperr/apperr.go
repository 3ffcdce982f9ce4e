// Package apperr defines the error taxonomy shared by the clinic domains and
// its mapping onto HTTP responses. Domain code wraps one of the sentinel
// errors with a user-facing message; handlers classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBusy       = errors.New("change already in progress")
	ErrTransport  = errors.New("service unavailable")
	ErrAuth       = errors.New("authentication required")
)

// GenericMessage is shown to users instead of raw transport or server errors.
const GenericMessage = "The request could not be completed. Please try again."

// Error carries a user-facing message alongside its classification.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error { return newf(ErrValidation, format, args...) }
func NotFound(format string, args ...interface{}) error   { return newf(ErrNotFound, format, args...) }
func Conflict(format string, args ...interface{}) error   { return newf(ErrConflict, format, args...) }
func Busy(format string, args ...interface{}) error       { return newf(ErrBusy, format, args...) }
func Auth(format string, args ...interface{}) error       { return newf(ErrAuth, format, args...) }

// Transport wraps an infrastructure failure (database, cache, network).
func Transport(cause error, format string, args ...interface{}) error {
	return &Error{Kind: ErrTransport, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Message returns the text safe to show a user for err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && !errors.Is(err, ErrTransport) {
		return ae.Message
	}
	return GenericMessage
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts err into an echo HTTP error. Unclassified errors keep their
// text internal (available to the logger via Internal) and show the generic
// message.
func HTTP(err error) *echo.HTTPError {
	he := echo.NewHTTPError(Status(err), Message(err))
	he.Internal = err
	return he
}
