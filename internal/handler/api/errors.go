package api

import (
	"context"
	"errors"

	"MarketLens/internal/domain/models"
	xhttp "MarketLens/pkg/http"
)

// toAppError maps domain errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var (
		ve  *models.ValidationError
		cle *models.ConfigLoadError
	)
	switch {
	case errors.As(err, &ve):
		return xhttp.BadRequestError(ve.Field, ve.Message)
	case errors.Is(err, models.ErrAnomalyNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, models.ErrNoPriceData):
		return xhttp.NotFoundError(err.Error())
	case errors.As(err, &cle):
		return xhttp.ServiceUnavailableError("threshold configuration unavailable").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("query timed out").WithError(err)
	default:
		return xhttp.InternalError("query failed").WithError(err)
	}
}
