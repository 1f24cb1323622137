package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/httputil"
)

// expiredActionMessage is shown when a confirmation id is unknown, already
// resolved, or past its TTL.
const expiredActionMessage = "This action has expired or is no longer valid. Please try again."

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var conflictErr *domain.ConflictError
	var httpErr domain.HTTPError

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondError(w, http.StatusConflict, conflictErr.Error())
	case errors.Is(err, domain.ErrRateLimited):
		httputil.RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrActionExpired):
		httputil.RespondError(w, http.StatusGone, expiredActionMessage)
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), http.StatusText(httpErr.StatusCode()))
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
