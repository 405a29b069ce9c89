package handler

import (
	"context"
	"errors"
	"net/http"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type placeDTO struct {
	Lat     *float64 `json:"lat" validate:"required,latitude"`
	Lng     *float64 `json:"lng" validate:"required,longitude"`
	Address string   `json:"address" validate:"max=255"`
}

func (p placeDTO) place() trip.Place {
	return trip.Place{Point: geo.Point{Lat: *p.Lat, Lng: *p.Lng}, Address: p.Address}
}

type createBookingRequest struct {
	Pickup      placeDTO `json:"pickup" validate:"required"`
	Destination placeDTO `json:"destination" validate:"required"`
	VehicleType string   `json:"vehicle_type" validate:"max=16"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ----- Handler: POST /bookings -----

func (handler *TrackingHTTPHandler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var req createBookingRequest
	if !handler.decodeJSON(ctx, w, r, &req, false) {
		return
	}

	vt, err := trip.ParseVehicleType(req.VehicleType)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, etaTimeout)
	defer cancel()

	res, err := handler.svc.CreateBooking(ctxWithTimeout, ports.CreateBookingInput{
		PassengerID: actor.ID,
		Pickup:      req.Pickup.place(),
		Destination: req.Destination.place(),
		VehicleType: vt,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// ----- Handler: GET /bookings/{booking_id} -----

func (handler *TrackingHTTPHandler) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.GetBooking(ctxWithTimeout, actor, r.PathValue("booking_id"))
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /bookings/{booking_id}/status -----

func (handler *TrackingHTTPHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var req updateStatusRequest
	if !handler.decodeJSON(ctx, w, r, &req, false) {
		return
	}

	status, err := trip.ParseStatus(req.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "unknown status: "+req.Status, err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.UpdateBookingStatus(ctxWithTimeout, ports.UpdateStatusInput{
		Actor:     actor,
		BookingID: r.PathValue("booking_id"),
		Status:    status,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}
