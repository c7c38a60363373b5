package httpadapter

import (
	"net/http"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrSubmissionNotFound), domain.IsKind(err, domain.ErrTutorialNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrLeaseHeld), domain.IsKind(err, domain.ErrNotRetryable):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
