package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ride-booking/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type startTrackingRequest struct {
	UpdateIntervalMs int64 `json:"update_interval_ms" validate:"omitempty,min=1000,max=300000"`
	HighAccuracy     bool  `json:"high_accuracy"`
	BatteryOptimized bool  `json:"battery_optimized"`
}

type optimizeTrackingRequest struct {
	BatteryLevel   *float64 `json:"battery_level" validate:"omitempty,min=0,max=100"`
	IsCharging     *bool    `json:"is_charging"`
	NetworkType    string   `json:"network_type" validate:"max=16"`
	BackgroundMode bool     `json:"background_mode"`
}

// ----- Handler: POST /trips/{booking_id}/tracking/start -----

func (handler *TrackingHTTPHandler) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var req startTrackingRequest
	if !handler.decodeJSON(ctx, w, r, &req, true) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	res, err := handler.svc.StartTracking(ctxWithTimeout, ports.StartTrackingInput{
		Actor:            actor,
		BookingID:        r.PathValue("booking_id"),
		UpdateInterval:   time.Duration(req.UpdateIntervalMs) * time.Millisecond,
		HighAccuracy:     req.HighAccuracy,
		BatteryOptimized: req.BatteryOptimized,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /trips/{booking_id}/tracking/stop -----

func (handler *TrackingHTTPHandler) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.StopTracking(ctxWithTimeout, actor, r.PathValue("booking_id"))
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /trips/{booking_id}/tracking/optimize -----

func (handler *TrackingHTTPHandler) handleOptimizeTracking(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var req optimizeTrackingRequest
	if !handler.decodeJSON(ctx, w, r, &req, false) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.OptimizeTracking(ctxWithTimeout, ports.OptimizeTrackingInput{
		Actor:     actor,
		BookingID: r.PathValue("booking_id"),
		Conditions: ports.DeviceConditions{
			BatteryLevel:   req.BatteryLevel,
			IsCharging:     req.IsCharging,
			NetworkType:    req.NetworkType,
			BackgroundMode: req.BackgroundMode,
		},
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /trips/{booking_id} -----

func (handler *TrackingHTTPHandler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.GetTrip(ctxWithTimeout, actor, r.PathValue("booking_id"))
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /trips/{booking_id}/eta -----

// handleGetETA accepts an optional speed_kmh query parameter overriding the device speed.
func (handler *TrackingHTTPHandler) handleGetETA(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	actor, ok := actorOf(r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var speed *float64
	if raw := r.URL.Query().Get("speed_kmh"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 300 {
			handler.httpError(ctx, w, http.StatusBadRequest, "speed_kmh must be a number between 0 and 300", err)
			return
		}
		speed = &v
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, etaTimeout)
	defer cancel()

	res, err := handler.svc.GetETA(ctxWithTimeout, actor, r.PathValue("booking_id"), speed)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}
