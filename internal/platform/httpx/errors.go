package httpx

import (
	"errors"
	"net/http"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// RespondError maps the domain error taxonomy to HTTP responses using RFC7807.
// StateConflict and ExternalSystemFailure keep their detail so the caller sees
// the current state or the upstream reason.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Authorization Denied", err.Error())
	case errors.Is(err, shared.ErrStateConflict):
		Problem(w, http.StatusConflict, "State Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrExternal):
		Problem(w, http.StatusBadGateway, "Accounting System Failure", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
