package httpx

import (
	"errors"
	"net/http"

	"github.com/target/mmk-items-api/internal/data"
	"github.com/target/mmk-items-api/internal/domain/model"
	apperrors "github.com/target/mmk-items-api/internal/errors"
	"github.com/target/mmk-items-api/internal/service"
)

// writeServiceError maps service and repository errors to a status code.
// fallback is the error code used for unclassified 500s, e.g. "create_failed".
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var verrs model.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: "validation_failed", Errors: verrs.Messages()})
	case errors.Is(err, data.ErrItemNotFound), errors.Is(err, data.ErrBatchRunNotFound), apperrors.IsNotFound(err):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	case errors.Is(err, service.ErrInvalidFilter):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_filter", Err: err})
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	case apperrors.IsConflict(err):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: err})
	case apperrors.IsUnavailable(err), apperrors.IsTimeout(err):
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "unavailable", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: fallback, Err: err})
	}
}
