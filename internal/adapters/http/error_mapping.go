package httpadapter

import (
	"net/http"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps internal error chains out of 5xx bodies.
func publicErrorMessage(status int, err error) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case status >= 500:
		return "internal server error"
	default:
		return err.Error()
	}
}
