package api

import (
	"errors"
	"net/http"

	"github.com/eugenenazirov/confloader/internal/registry"
	"github.com/eugenenazirov/confloader/internal/schema"
)

// ErrRateLimited is reported when the request rate limiter has no tokens left.
var ErrRateLimited = errors.New("rate limit exceeded")

type failure struct {
	status     int
	title      string
	suggestion string
}

// classify maps registry and schema errors onto HTTP responses. Anything it
// does not recognise is an internal error.
func classify(err error) failure {
	switch {
	case errors.Is(err, registry.ErrUnknownKey):
		return failure{status: http.StatusNotFound, title: "Unknown key", suggestion: "list registered keys with GET /api/entries"}
	case errors.Is(err, schema.ErrUnsupportedType):
		return failure{status: http.StatusBadRequest, title: "Invalid request", suggestion: "type must be one of int, string, bool"}
	case errors.Is(err, registry.ErrEmptyValue),
		errors.Is(err, registry.ErrParse),
		errors.Is(err, registry.ErrInvalidBoolean):
		return failure{status: http.StatusUnprocessableEntity, title: "Conversion failed"}
	case errors.Is(err, ErrRateLimited):
		return failure{status: http.StatusTooManyRequests, title: "Too many requests", suggestion: "retry after the Retry-After interval"}
	default:
		return failure{status: http.StatusInternalServerError, title: "Internal error"}
	}
}

// writeFailure answers with the response classify picks for err and records
// err for the access log. Internal error details are not exposed.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	noteError(r.Context(), err)

	f := classify(err)
	details := err.Error()
	if f.status == http.StatusInternalServerError {
		details = "unexpected server error"
	}
	writeError(w, f.status, f.title, details, f.suggestion)
}
