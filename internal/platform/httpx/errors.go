package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-desk/internal/api"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// RespondError maps domain and upstream errors to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	var upstream *api.Error
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrNotAuthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		Problem(w, status, http.StatusText(status), api.MessageOf(err, ""))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
