package handler

import (
	"context"
	"errors"
	"net/http"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/general/maps"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/tracking/cadence"
	"ride-booking/internal/software/tracking/service"

	"github.com/jackc/pgx/v5/pgconn"
)

// serviceError renders err with the status its type implies.
func (handler *TrackingHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		pgErr  *pgconn.PgError
		posErr *geo.PositionError
	)
	switch {
	case errors.As(err, &pgErr):
		handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)

	case errors.Is(err, ports.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "booking not found", err)
	case errors.Is(err, service.ErrNoTrackingSession):
		handler.httpError(ctx, w, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, service.ErrForbidden):
		handler.httpError(ctx, w, http.StatusForbidden, err.Error(), err)

	case errors.Is(err, ports.ErrConflict):
		handler.httpError(ctx, w, http.StatusConflict, "booking was updated concurrently, retry", err)
	case errors.Is(err, trip.ErrInvalidStatusTransition), errors.Is(err, trip.ErrAlreadyAssigned),
		errors.Is(err, trip.ErrNoDriverAssigned), errors.Is(err, service.ErrNotTrackable),
		errors.Is(err, cadence.ErrTrackingAlreadyActive), errors.Is(err, cadence.ErrNoCurrentLocation):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.As(err, &posErr):
		handler.httpError(ctx, w, http.StatusConflict, "device position unavailable: "+posErr.Message, err)

	case errors.Is(err, trip.ErrPassengerRequired), errors.Is(err, trip.ErrDriverRequired),
		errors.Is(err, trip.ErrSamePickupDestination), errors.Is(err, trip.ErrInvalidVehicleType),
		errors.Is(err, trip.ErrInvalidStatus),
		errors.Is(err, geo.ErrInvalidLatitude), errors.Is(err, geo.ErrInvalidLongitude):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)

	case errors.Is(err, cadence.ErrNoRoute), errors.Is(err, maps.ErrNoRoute):
		handler.httpError(ctx, w, http.StatusUnprocessableEntity, "no route to destination", err)
	case errors.Is(err, cadence.ErrGeolocationUnsupported), errors.Is(err, cadence.ErrDirectionsUnavailable):
		handler.httpError(ctx, w, http.StatusServiceUnavailable, err.Error(), err)
	case errors.Is(err, maps.ErrRequestDeny):
		handler.httpError(ctx, w, http.StatusBadGateway, "directions provider rejected the request", err)

	case errors.Is(err, context.DeadlineExceeded):
		handler.httpError(ctx, w, http.StatusGatewayTimeout, "request timed out", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}
