package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/contracts"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/rabbitmq"
	"ride-booking/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ----- fakes -----

type inlineUoW struct{}

func (inlineUoW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockUsers struct {
	ports.UserRepository
	mock.Mock
}

func (m *mockUsers) CountByRole(ctx context.Context) (map[user.Role]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[user.Role]int), args.Error(1)
}

type mockBookings struct {
	ports.BookingRepository
	mock.Mock
}

func (m *mockBookings) CountByStatus(ctx context.Context) (map[trip.Status]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[trip.Status]int), args.Error(1)
}

func (m *mockBookings) CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	args := m.Called(ctx, start, end)
	return args.Int(0), args.Error(1)
}

func (m *mockBookings) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockBookings) ListActive(ctx context.Context, offset, limit int) ([]ports.ActiveTripRow, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]ports.ActiveTripRow), args.Error(1)
}

type mockHistory struct {
	ports.LocationHistoryRepository
	mock.Mock
}

func (m *mockHistory) CountRecordedBetween(ctx context.Context, start, end time.Time) (int, error) {
	args := m.Called(ctx, start, end)
	return args.Int(0), args.Error(1)
}

type mockAudit struct {
	ports.VerificationEventRepository
	mock.Mock
}

func (m *mockAudit) CountBetween(ctx context.Context, action, outcome string, start, end time.Time) (int, error) {
	args := m.Called(ctx, action, outcome, start, end)
	return args.Int(0), args.Error(1)
}

// scriptedConsumer decodes each body the way the broker client does, hands the events to the
// handler, then blocks until ctx is done.
type scriptedConsumer struct {
	mu      sync.Mutex
	bodies  [][]byte
	results []error
	calls   int
}

func (c *scriptedConsumer) ConsumeTripEvents(ctx context.Context, tag string, prefetch int, handler rabbitmq.TripEventHandler) error {
	c.mu.Lock()
	c.calls++
	bodies := c.bodies
	c.bodies = nil
	c.mu.Unlock()

	for _, b := range bodies {
		msg, err := rabbitmq.DecodeTripEvent(b)
		if err == nil {
			err = handler(ctx, msg)
		}
		c.mu.Lock()
		c.results = append(c.results, err)
		c.mu.Unlock()
	}
	<-ctx.Done()
	return nil
}

func (c *scriptedConsumer) outcomes() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.results...)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type connState bool

func (c connState) Connected() bool { return bool(c) }

func newTestService(deps Deps) *adminService {
	if deps.UoW == nil {
		deps.UoW = inlineUoW{}
	}
	log := logger.NewWithCore("admin-test", zapcore.NewNopCore())
	return NewAdminService(log, deps).(*adminService)
}

// ----- overview -----

func TestGetSystemOverview(t *testing.T) {
	users := &mockUsers{}
	bookings := &mockBookings{}
	history := &mockHistory{}
	audit := &mockAudit{}

	x := mock.Anything
	users.On("CountByRole", x).Return(map[user.Role]int{user.RolePassenger: 7, user.RoleDriver: 3}, nil)
	bookings.On("CountByStatus", x).Return(map[trip.Status]int{trip.StatusWaiting: 2, trip.StatusStarted: 1}, nil)
	bookings.On("CountActive", x).Return(1, nil)
	bookings.On("CountCreatedBetween", x, x, x).Return(4, nil)
	history.On("CountRecordedBetween", x, x, x).Return(120, nil)
	audit.On("CountBetween", x, "send", "success", x, x).Return(5, nil)
	audit.On("CountBetween", x, "resend", "success", x, x).Return(2, nil)
	audit.On("CountBetween", x, "verify", "success", x, x).Return(4, nil)
	audit.On("CountBetween", x, "verify", "failure", x, x).Return(1, nil)

	svc := newTestService(Deps{Users: users, Bookings: bookings, History: history, Audit: audit})
	svc.remember(ports.TripEventView{BookingID: "b-1", EventType: "TRACKING_STARTED"})

	res, err := svc.GetSystemOverview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"PASSENGER": 7, "DRIVER": 3}, res.UsersByRole)
	assert.Equal(t, map[string]int{"waiting": 2, "started": 1}, res.BookingsByStatus)
	assert.Equal(t, ports.OverviewMetrics{
		ActiveTrips:          1,
		BookingsToday:        4,
		LocationSamplesToday: 120,
		CodesSentToday:       7,
		CodesVerifiedToday:   4,
		CodesFailedToday:     1,
		RecentTripEvents:     1,
	}, res.Metrics)
	assert.False(t, res.Timestamp.IsZero())

	// the day window passed to the repositories is midnight to midnight UTC
	var start, end time.Time
	for _, c := range bookings.Calls {
		if c.Method == "CountCreatedBetween" {
			start = c.Arguments.Get(1).(time.Time)
			end = c.Arguments.Get(2).(time.Time)
		}
	}
	assert.Equal(t, 24*time.Hour, end.Sub(start))
	assert.Equal(t, 0, start.Hour())
}

func TestGetSystemOverviewPropagatesStoreErrors(t *testing.T) {
	users := &mockUsers{}
	boom := errors.New("boom")
	users.On("CountByRole", mock.Anything).Return(map[user.Role]int(nil), boom)

	svc := newTestService(Deps{Users: users, Bookings: &mockBookings{}})

	_, err := svc.GetSystemOverview(context.Background())
	assert.ErrorIs(t, err, boom)
}

// ----- active trips -----

func TestGetActiveTripsPagination(t *testing.T) {
	lastAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := ports.ActiveTripRow{
		BookingID:      "b-9",
		Status:         "on_way",
		LastLocation:   &geo.Point{Lat: 43.24, Lng: 76.89},
		LastLocationAt: &lastAt,
	}

	tests := []struct {
		name           string
		page, pageSize string
		wantOffset     int
		wantLimit      int
	}{
		{"defaults", "", "", 0, defaultPageSize},
		{"garbage falls back", "x", "-3", 0, defaultPageSize},
		{"third page", "3", "20", 40, 20},
		{"size capped", "1", "1000", 0, maxPageSize},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bookings := &mockBookings{}
			bookings.On("CountActive", mock.Anything).Return(41, nil)
			bookings.On("ListActive", mock.Anything, tc.wantOffset, tc.wantLimit).Return([]ports.ActiveTripRow{row}, nil)

			svc := newTestService(Deps{Bookings: bookings})
			res, err := svc.GetActiveTrips(context.Background(), tc.page, tc.pageSize)
			require.NoError(t, err)

			assert.Equal(t, 41, res.TotalCount)
			assert.Equal(t, tc.wantLimit, res.PageSize)
			assert.Equal(t, []ports.ActiveTripRow{row}, res.Trips)
			bookings.AssertExpectations(t)
		})
	}
}

func TestGetActiveTripsEmptyPageIsNotNull(t *testing.T) {
	bookings := &mockBookings{}
	bookings.On("CountActive", mock.Anything).Return(0, nil)
	bookings.On("ListActive", mock.Anything, 0, defaultPageSize).Return([]ports.ActiveTripRow(nil), nil)

	svc := newTestService(Deps{Bookings: bookings})
	res, err := svc.GetActiveTrips(context.Background(), "1", "")
	require.NoError(t, err)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"trips":[]`)
}

// ----- recent events -----

func TestRecentEventsRing(t *testing.T) {
	svc := newTestService(Deps{})
	assert.Empty(t, svc.RecentEvents(10))

	for i := 0; i < recentEventsCap+5; i++ {
		svc.remember(ports.TripEventView{BookingID: "b", Data: map[string]any{"seq": i}})
	}

	all := svc.RecentEvents(0)
	require.Len(t, all, recentEventsCap)
	assert.Equal(t, recentEventsCap+4, all[0].Data["seq"])
	assert.Equal(t, 5, all[len(all)-1].Data["seq"])

	top := svc.RecentEvents(3)
	require.Len(t, top, 3)
	assert.Equal(t, recentEventsCap+2, top[2].Data["seq"])
	assert.Equal(t, recentEventsCap, svc.recentCount())
}

func TestRunEventConsumer(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	good, err := json.Marshal(contracts.TripEventMessage{
		BookingID: "b-1",
		EventType: "DRIVER_ARRIVED",
		Data:      map[string]any{"distance_m": 12.5},
		Timestamp: occurred,
		Envelope:  contracts.Envelope{Producer: contracts.ProducerTrackingService},
	})
	require.NoError(t, err)

	consumer := &scriptedConsumer{bodies: [][]byte{
		good,
		[]byte("{not json"),
		[]byte(`{"booking_id":"b-2"}`),
	}}
	svc := newTestService(Deps{Consumer: consumer, Prefetch: 10})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunEventConsumer(ctx) }()

	require.Eventually(t, func() bool { return len(consumer.outcomes()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	outcomes := consumer.outcomes()
	assert.NoError(t, outcomes[0])
	assert.ErrorIs(t, outcomes[1], rabbitmq.ErrMalformedMessage)
	assert.ErrorIs(t, outcomes[2], rabbitmq.ErrMalformedMessage)

	events := svc.RecentEvents(10)
	require.Len(t, events, 1)
	assert.Equal(t, "b-1", events[0].BookingID)
	assert.Equal(t, "DRIVER_ARRIVED", events[0].EventType)
	assert.Equal(t, contracts.ProducerTrackingService, events[0].Producer)
	assert.Equal(t, occurred, events[0].OccurredAt)
	assert.False(t, events[0].ReceivedAt.IsZero())
}

// ----- health -----

func TestHealth(t *testing.T) {
	t.Run("all ok", func(t *testing.T) {
		svc := newTestService(Deps{DB: pinger{}, Broker: connState(true)})
		res := svc.Health(context.Background())
		assert.Equal(t, "ok", res.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "rabbitmq": "ok"}, res.Checks)
	})

	t.Run("degraded", func(t *testing.T) {
		svc := newTestService(Deps{DB: pinger{err: errors.New("connection refused")}, Broker: connState(false)})
		res := svc.Health(context.Background())
		assert.Equal(t, "degraded", res.Status)
		assert.Equal(t, "connection refused", res.Checks["postgres"])
		assert.Equal(t, "not connected", res.Checks["rabbitmq"])
		assert.False(t, res.CheckedAt.IsZero())
	})
}
