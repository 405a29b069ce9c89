package cadence

import (
	"context"
	"testing"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTripTracker builds a tracker already on the dropoff leg from origin to dest.
func newTripTracker(t *testing.T, g *fakeGeo, dir *fakeDirections, dest geo.Point) (*TripTracker, *recorder) {
	t.Helper()
	return newLegTracker(t, g, dir, trip.StatusStarted, origin, dest)
}

func newLegTracker(t *testing.T, g *fakeGeo, dir *fakeDirections, status trip.Status, pickup, dest geo.Point) (*TripTracker, *recorder) {
	t.Helper()
	ctrl := NewController(g, nil, dir, DefaultSettings(), testLogger())
	record := &trip.Tracking{
		BookingID:     "booking-1",
		DriverID:      "driver-1",
		CustomerID:    "customer-1",
		Status:        status,
		StartLocation: pickup,
		EndLocation:   dest,
	}
	tt := NewTripTracker(record, ctrl)
	rec := &recorder{}
	unsub := tt.Subscribe(rec.record)
	t.Cleanup(func() {
		tt.Close()
		unsub()
	})
	return tt, rec
}

func TestTripTrackerArrivesOnce(t *testing.T) {
	g := newFakeGeo(origin)
	dest := north(origin, 1000)
	tt, rec := newTripTracker(t, g, nil, dest)

	require.NoError(t, tt.Start(context.Background(), Options{}))
	assert.Equal(t, "booking-1", tt.Controller().Session().BookingID)
	assert.Zero(t, count[Arrived](rec))

	g.move(north(origin, 500))
	assert.Zero(t, count[Arrived](rec))

	g.move(north(origin, 920))
	assert.Equal(t, 1, count[Arrived](rec))

	g.move(north(origin, 990))
	g.move(north(origin, 1050))
	assert.Equal(t, 1, count[Arrived](rec))

	snap := tt.Snapshot()
	assert.True(t, snap.Arrived)
	require.NotNil(t, snap.CurrentLocation)
	assert.InDelta(t, north(origin, 1050).Lat, snap.CurrentLocation.Coordinates.Lat, 1e-9)

	// the snapshot is a copy
	snap.CurrentLocation.Coordinates.Lat = 0
	assert.NotZero(t, tt.Snapshot().CurrentLocation.Coordinates.Lat)
}

func TestTripTrackerForwardsControllerEvents(t *testing.T) {
	g := newFakeGeo(origin)
	tt, rec := newTripTracker(t, g, nil, north(origin, 5000))

	require.NoError(t, tt.Start(context.Background(), Options{}))
	tt.Stop()

	assert.Equal(t, 1, count[Started](rec))
	assert.Equal(t, 1, count[LocationUpdated](rec))
	assert.Equal(t, 1, count[Stopped](rec))
}

func TestTripTrackerRefreshETA(t *testing.T) {
	g := newFakeGeo(origin)
	dir := &fakeDirections{routes: []trip.Route{{DistanceMeters: 3000, DurationSeconds: 600}}}
	tt, _ := newTripTracker(t, g, dir, north(origin, 3000))

	_, err := tt.RefreshETA(context.Background())
	assert.ErrorIs(t, err, ErrNoCurrentLocation)

	require.NoError(t, tt.Start(context.Background(), Options{}))
	eta, err := tt.RefreshETA(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, eta.Minutes)

	snap := tt.Snapshot()
	require.NotNil(t, snap.ETA)
	require.NotNil(t, snap.Route)
	assert.Equal(t, 3000, snap.Route.DistanceMeters)

	tt.SetStatus(trip.StatusCompleted)
	assert.Equal(t, trip.StatusCompleted, tt.Snapshot().Status)
}

func arrivals(r *recorder) []Arrived {
	var out []Arrived
	for _, ev := range r.all() {
		if a, ok := ev.(Arrived); ok {
			out = append(out, a)
		}
	}
	return out
}

func TestTripTrackerArrivesAtPickupThenDestination(t *testing.T) {
	g := newFakeGeo(origin)
	pickup := north(origin, 1000)
	dest := north(origin, 4000)
	tt, rec := newLegTracker(t, g, nil, trip.StatusOnWay, pickup, dest)

	target, leg := tt.Target()
	assert.Equal(t, pickup, target)
	assert.Equal(t, trip.LegPickup, leg)

	require.NoError(t, tt.Start(context.Background(), Options{}))
	g.move(north(origin, 950))
	got := arrivals(rec)
	require.Len(t, got, 1)
	assert.Equal(t, trip.LegPickup, got[0].Leg)
	assert.True(t, tt.Snapshot().Arrived)

	// same leg, no repeat
	g.move(north(origin, 1010))
	assert.Len(t, arrivals(rec), 1)

	tt.SetStatus(trip.StatusArrived)
	assert.False(t, tt.Snapshot().Arrived)
	target, leg = tt.Target()
	assert.Equal(t, dest, target)
	assert.Equal(t, trip.LegDropoff, leg)

	tt.SetStatus(trip.StatusStarted)
	g.move(north(origin, 2500))
	assert.Len(t, arrivals(rec), 1)

	g.move(north(origin, 3950))
	got = arrivals(rec)
	require.Len(t, got, 2)
	assert.Equal(t, trip.LegDropoff, got[1].Leg)
	assert.True(t, tt.Snapshot().Arrived)
}

func TestTripTrackerDestinationIgnoredOnPickupLeg(t *testing.T) {
	g := newFakeGeo(origin)
	tt, rec := newLegTracker(t, g, nil, trip.StatusAccepted, north(origin, 3000), north(origin, 1000))

	require.NoError(t, tt.Start(context.Background(), Options{}))
	g.move(north(origin, 1000))
	assert.Empty(t, arrivals(rec))
	assert.False(t, tt.Snapshot().Arrived)
}

func TestTripTrackerRefreshETATargetsLeg(t *testing.T) {
	g := newFakeGeo(origin)
	dir := &fakeDirections{routes: []trip.Route{{DistanceMeters: 1000, DurationSeconds: 120}}}
	pickup := north(origin, 1000)
	dest := north(origin, 4000)
	tt, _ := newLegTracker(t, g, dir, trip.StatusOnWay, pickup, dest)
	require.NoError(t, tt.Start(context.Background(), Options{}))

	_, err := tt.RefreshETA(context.Background())
	require.NoError(t, err)
	require.Len(t, dir.got, 2)
	assert.Equal(t, pickup, dir.got[1])

	tt.SetStatus(trip.StatusArrived)
	_, err = tt.RefreshETA(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dest, dir.got[1])
}
