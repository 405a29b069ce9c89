package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/websocket"
	"ride-booking/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	requestTimeout = 5 * time.Second
	// startTimeout covers the warm-up position fetch from the device.
	startTimeout = 15 * time.Second
	// etaTimeout covers one directions provider round trip.
	etaTimeout = 10 * time.Second
)

// TrackingHTTPHandler adapts HTTP requests to the TrackingService and mounts the trip sockets.
type TrackingHTTPHandler struct {
	svc      ports.TrackingService
	logger   *logger.Logger
	auth     *jwt.Manager
	ws       *websocket.WebSocket
	validate *validator.Validate
}

// NewTrackingHTTPHandler wires an HTTP handler around the TrackingService.
func NewTrackingHTTPHandler(svc ports.TrackingService, logger *logger.Logger, auth *jwt.Manager, ws *websocket.WebSocket) *TrackingHTTPHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &TrackingHTTPHandler{svc: svc, logger: logger, auth: auth, ws: ws, validate: v}
}

// RegisterRoutes mounts booking, tracking and websocket endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	anyRole := jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger, user.RoleDriver, user.RoleAdmin)
	driverOnly := jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)

	mux.HandleFunc("POST /bookings", jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handleCreateBooking))
	mux.HandleFunc("GET /bookings/{booking_id}", anyRole(handler.handleGetBooking))
	mux.HandleFunc("POST /bookings/{booking_id}/status", anyRole(handler.handleUpdateStatus))

	mux.HandleFunc("POST /trips/{booking_id}/tracking/start", driverOnly(handler.handleStartTracking))
	mux.HandleFunc("POST /trips/{booking_id}/tracking/stop", driverOnly(handler.handleStopTracking))
	mux.HandleFunc("POST /trips/{booking_id}/tracking/optimize", driverOnly(handler.handleOptimizeTracking))
	mux.HandleFunc("GET /trips/{booking_id}", anyRole(handler.handleGetTrip))
	mux.HandleFunc("GET /trips/{booking_id}/eta", anyRole(handler.handleGetETA))

	// websockets authenticate with the first frame, not the Authorization header
	mux.HandleFunc("GET /ws/trips/{booking_id}/device", handler.ws.ConnectDevice)
	mux.HandleFunc("GET /ws/trips/{booking_id}/passenger", handler.ws.ConnectPassenger)

	mux.HandleFunc("GET /tracking/health", handler.handleHealth)
}

// ----- general helpers -----

// actorOf returns the authenticated caller. The middleware guarantees claims are present.
func actorOf(r *http.Request) (ports.Actor, bool) {
	claims := jwt.RequireClaims(r)
	if claims == nil {
		return ports.Actor{}, false
	}
	return ports.Actor{ID: claims.Subject, Role: claims.Role}, true
}

// decodeJSON strictly decodes and validates the request body into dst. On failure it has
// already written the response. An empty body is accepted when allowEmpty is set.
func (handler *TrackingHTTPHandler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if allowEmpty && r.ContentLength == 0 {
		return handler.validateStruct(ctx, w, dst)
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return handler.validateStruct(ctx, w, dst)
}

func (handler *TrackingHTTPHandler) validateStruct(ctx context.Context, w http.ResponseWriter, dst any) bool {
	if err := handler.validate.Struct(dst); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

// validationMessage renders the first failed rule as "<field> failed <rule>".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			return field + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return field + " failed " + fe.Tag()
	}
	return "invalid request"
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	ctx = handler.logger.WithRequestID(ctx, reqID)
	if id := r.PathValue("booking_id"); id != "" {
		ctx = handler.logger.WithBookingID(ctx, id)
	}
	return ctx
}

// ----- Handler: GET /tracking/health -----

func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "tracking-service",
	})
}
