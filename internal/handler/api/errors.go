package api

import (
	"errors"
	"net/http"

	"FinCast/internal/domain/models"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
)

// toAppError maps pipeline failures onto HTTP answers.
func toAppError(err error) *xhttp.AppError {
	kind := models.KindOf(err)
	code := "ERR_" + string(kind)
	switch {
	case errors.Is(err, usecase.ErrTrainingInProgress):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case kind == models.KindUnknownInstrument:
		return xhttp.NewAppError(code, "symbol", err.Error(), http.StatusBadRequest).WithError(err)
	case kind == models.KindModelNotFound:
		return xhttp.NewAppError(code, "symbol", "no trained model for this instrument", http.StatusNotFound).
			WithParam("recoverable", true).
			WithError(err)
	case kind == models.KindDataUnavailable:
		return xhttp.NewAppError(code, "symbol", "market data unavailable", http.StatusNotFound).WithError(err)
	case kind == models.KindInternal:
		return xhttp.InternalError("forecast failed").WithError(err)
	default:
		return xhttp.UnprocessableError(code, err.Error()).WithError(err)
	}
}
