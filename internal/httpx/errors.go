package httpx

import (
	"errors"
	"net/http"

	"github.com/sundayezeilo/customlinks/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to the error code used in JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.Invalid:
		return "invalid_input"
	case errx.NotFound:
		return "not_found"
	case errx.Unavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// WriteErr writes err as an ErrorResponse with the status of its kind.
// Only client errors (4xx) carry the underlying message; server-side
// failures get a generic one and are expected to be logged by the caller.
func WriteErr(w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)
	status := ErrorKindToStatus(kind)

	var message string
	switch {
	case status < http.StatusInternalServerError:
		message = Cause(err).Error()
	case kind == errx.Unavailable:
		message = "the link store is temporarily unavailable"
	default:
		message = "an unexpected error occurred"
	}
	WriteError(w, status, ErrorKindToCode(kind), message)
}

// Cause strips the operation names of nested errx errors and returns the
// underlying error.
func Cause(err error) error {
	for {
		var e *errx.Error
		if !errors.As(err, &e) || e.Err == nil {
			return err
		}
		err = e.Err
	}
}
