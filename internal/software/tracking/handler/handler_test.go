package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/websocket"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/tracking/cadence"
	"ride-booking/internal/software/tracking/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type mockTrackingService struct{ mock.Mock }

func (m *mockTrackingService) CreateBooking(ctx context.Context, in ports.CreateBookingInput) (ports.BookingView, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(ports.BookingView), args.Error(1)
}

func (m *mockTrackingService) GetBooking(ctx context.Context, actor ports.Actor, bookingID string) (ports.BookingView, error) {
	args := m.Called(ctx, actor, bookingID)
	return args.Get(0).(ports.BookingView), args.Error(1)
}

func (m *mockTrackingService) UpdateBookingStatus(ctx context.Context, in ports.UpdateStatusInput) (ports.BookingView, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(ports.BookingView), args.Error(1)
}

func (m *mockTrackingService) StartTracking(ctx context.Context, in ports.StartTrackingInput) (ports.TrackingView, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(ports.TrackingView), args.Error(1)
}

func (m *mockTrackingService) StopTracking(ctx context.Context, actor ports.Actor, bookingID string) (ports.TrackingView, error) {
	args := m.Called(ctx, actor, bookingID)
	return args.Get(0).(ports.TrackingView), args.Error(1)
}

func (m *mockTrackingService) OptimizeTracking(ctx context.Context, in ports.OptimizeTrackingInput) (ports.TrackingView, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(ports.TrackingView), args.Error(1)
}

func (m *mockTrackingService) GetTrip(ctx context.Context, actor ports.Actor, bookingID string) (ports.TrackingView, error) {
	args := m.Called(ctx, actor, bookingID)
	return args.Get(0).(ports.TrackingView), args.Error(1)
}

func (m *mockTrackingService) GetETA(ctx context.Context, actor ports.Actor, bookingID string, speedKMH *float64) (ports.ETAView, error) {
	args := m.Called(ctx, actor, bookingID, speedKMH)
	return args.Get(0).(ports.ETAView), args.Error(1)
}

func (m *mockTrackingService) Shutdown() {}

type harness struct {
	mux *http.ServeMux
	mgr *jwt.Manager
	svc *mockTrackingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewWithCore("tracking-test", zapcore.NewNopCore())
	mgr := jwt.NewManager("handler-secret", time.Hour)
	ws := websocket.NewWebSocket(log, mgr, websocket.NewFeedRegistry(), func(context.Context, string, ports.Actor) error { return nil })

	svc := &mockTrackingService{}
	h := NewTrackingHTTPHandler(svc, log, mgr, ws)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &harness{mux: mux, mgr: mgr, svc: svc}
}

func (h *harness) do(t *testing.T, method, path, body string, actor *ports.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		token, _, err := h.mgr.IssueUserToken(actor.ID, actor.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var (
	passenger = &ports.Actor{ID: "p-1", Role: user.RolePassenger}
	driver    = &ports.Actor{ID: "d-1", Role: user.RoleDriver}
)

func TestCreateBooking(t *testing.T) {
	h := newHarness(t)

	h.svc.On("CreateBooking", mock.Anything, ports.CreateBookingInput{
		PassengerID: "p-1",
		Pickup:      trip.Place{Point: geo.Point{Lat: 59.33, Lng: 18.07}, Address: "A"},
		Destination: trip.Place{Point: geo.Point{Lat: 59.35, Lng: 18.07}},
		VehicleType: trip.VehicleXL,
	}).Return(ports.BookingView{ID: "b-1", Status: "waiting"}, nil)

	rec := h.do(t, http.MethodPost, "/bookings",
		`{"pickup":{"lat":59.33,"lng":18.07,"address":"A"},"destination":{"lat":59.35,"lng":18.07},"vehicle_type":"xl"}`, passenger)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "b-1", decodeBody(t, rec)["booking_id"])
	h.svc.AssertExpectations(t)
}

func TestCreateBookingValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		body   string
		actor  *ports.Actor
		status int
		msg    string
	}{
		{"no token", `{}`, nil, http.StatusUnauthorized, ""},
		{"driver cannot book", `{}`, driver, http.StatusForbidden, ""},
		{"missing pickup lat", `{"pickup":{"lng":18.07},"destination":{"lat":59.35,"lng":18.07}}`, passenger, http.StatusBadRequest, "pickup.lat failed required"},
		{"latitude out of range", `{"pickup":{"lat":95,"lng":18.07},"destination":{"lat":59.35,"lng":18.07}}`, passenger, http.StatusBadRequest, "pickup.lat failed latitude"},
		{"bad vehicle", `{"pickup":{"lat":59.33,"lng":18.07},"destination":{"lat":59.35,"lng":18.07},"vehicle_type":"bus"}`, passenger, http.StatusBadRequest, trip.ErrInvalidVehicleType.Error()},
		{"unknown field", `{"pickup":{"lat":59.33,"lng":18.07},"destination":{"lat":59.35,"lng":18.07},"fare":1}`, passenger, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/bookings", tc.body, tc.actor)
			assert.Equal(t, tc.status, rec.Code)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, decodeBody(t, rec)["error"])
			}
		})
	}
	h.svc.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestUpdateStatusErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ports.ErrNotFound, http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{ports.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: waiting -> completed", trip.ErrInvalidStatusTransition), http.StatusConflict},
		{trip.ErrAlreadyAssigned, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := newHarness(t)
			h.svc.On("UpdateBookingStatus", mock.Anything, ports.UpdateStatusInput{
				Actor: *driver, BookingID: "b-1", Status: trip.StatusAccepted,
			}).Return(ports.BookingView{}, tc.err)

			rec := h.do(t, http.MethodPost, "/bookings/b-1/status", `{"status":"ACCEPTED"}`, driver)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/bookings/b-1/status", `{"status":"teleported"}`, driver)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown status: teleported", decodeBody(t, rec)["error"])
}

func TestStartTracking(t *testing.T) {
	h := newHarness(t)

	h.svc.On("StartTracking", mock.Anything, ports.StartTrackingInput{
		Actor: *driver, BookingID: "b-1", UpdateInterval: 5 * time.Second, HighAccuracy: true,
	}).Return(ports.TrackingView{IsTracking: true, UpdateIntervalMs: 5000}, nil).Once()
	h.svc.On("StartTracking", mock.Anything, ports.StartTrackingInput{
		Actor: *driver, BookingID: "b-2",
	}).Return(ports.TrackingView{}, fmt.Errorf("warm-up position: %w",
		&geo.PositionError{Code: geo.PositionUnavailable, Message: "no device connected"})).Once()
	h.svc.On("StartTracking", mock.Anything, ports.StartTrackingInput{
		Actor: *driver, BookingID: "b-3",
	}).Return(ports.TrackingView{}, cadence.ErrTrackingAlreadyActive).Once()

	rec := h.do(t, http.MethodPost, "/trips/b-1/tracking/start", `{"update_interval_ms":5000,"high_accuracy":true}`, driver)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["is_tracking"])

	// an empty body uses the defaults
	rec = h.do(t, http.MethodPost, "/trips/b-2/tracking/start", "", driver)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "device position unavailable: no device connected", decodeBody(t, rec)["error"])

	rec = h.do(t, http.MethodPost, "/trips/b-3/tracking/start", "", driver)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/trips/b-1/tracking/start", `{"update_interval_ms":10}`, driver)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "update_interval_ms failed min=1000", decodeBody(t, rec)["error"])

	rec = h.do(t, http.MethodPost, "/trips/b-1/tracking/start", "", passenger)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.svc.AssertExpectations(t)
}

func TestOptimizeTracking(t *testing.T) {
	h := newHarness(t)

	h.svc.On("OptimizeTracking", mock.Anything, mock.MatchedBy(func(in ports.OptimizeTrackingInput) bool {
		return in.BookingID == "b-1" && in.Conditions.BatteryLevel != nil && *in.Conditions.BatteryLevel == 15 &&
			in.Conditions.NetworkType == "3g" && in.Conditions.IsCharging == nil
	})).Return(ports.TrackingView{UpdateIntervalMs: 30000}, nil)

	rec := h.do(t, http.MethodPost, "/trips/b-1/tracking/optimize", `{"battery_level":15,"network_type":"3g"}`, driver)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(30000), decodeBody(t, rec)["update_interval_ms"])

	rec = h.do(t, http.MethodPost, "/trips/b-1/tracking/optimize", `{"battery_level":150}`, driver)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTripAndETA(t *testing.T) {
	h := newHarness(t)

	h.svc.On("GetTrip", mock.Anything, *passenger, "b-1").
		Return(ports.TrackingView{}, service.ErrNoTrackingSession)
	speed := 42.5
	h.svc.On("GetETA", mock.Anything, *passenger, "b-1", &speed).
		Return(ports.ETAView{BookingID: "b-1", ETA: trip.ETA{Minutes: 7}}, nil)
	h.svc.On("GetETA", mock.Anything, *passenger, "b-2", (*float64)(nil)).
		Return(ports.ETAView{}, cadence.ErrNoCurrentLocation)

	rec := h.do(t, http.MethodGet, "/trips/b-1", "", passenger)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/trips/b-1/eta?speed_kmh=42.5", "", passenger)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	eta := decodeBody(t, rec)["eta"].(map[string]any)
	assert.Equal(t, float64(7), eta["duration_minutes"])

	rec = h.do(t, http.MethodGet, "/trips/b-2/eta", "", passenger)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodGet, "/trips/b-1/eta?speed_kmh=fast", "", passenger)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/tracking/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tracking-service", decodeBody(t, rec)["service"])
}
