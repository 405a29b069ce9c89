package cadence

import (
	"context"
	"sync"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
)

// TripTracker scopes a Controller to one booking and keeps its trip.Tracking record current.
type TripTracker struct {
	signal

	ctrl  *Controller
	unsub func()

	mu      sync.Mutex
	record  *trip.Tracking
	arrived bool
}

// NewTripTracker subscribes to ctrl; call Close to release it.
func NewTripTracker(record *trip.Tracking, ctrl *Controller) *TripTracker {
	t := &TripTracker{ctrl: ctrl, record: record}
	t.unsub = ctrl.Subscribe(t.onEvent)
	return t
}

// Start begins tracking for the trip's booking.
func (t *TripTracker) Start(ctx context.Context, opts Options) error {
	opts.BookingID = t.BookingID()
	return t.ctrl.StartTracking(ctx, opts)
}

func (t *TripTracker) Stop() { t.ctrl.StopTracking() }

// Close stops tracking and detaches from the controller.
func (t *TripTracker) Close() {
	t.ctrl.StopTracking()
	t.unsub()
}

func (t *TripTracker) Controller() *Controller { return t.ctrl }

func (t *TripTracker) BookingID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.BookingID
}

// SetStatus mirrors a booking status change into the record. Moving to a new leg re-arms
// arrival detection for the new target.
func (t *TripTracker) SetStatus(status trip.Status) {
	t.mu.Lock()
	if t.record.Status.Leg() != status.Leg() {
		t.arrived = false
		t.record.Arrived = false
	}
	t.record.Status = status
	t.record.UpdatedAt = t.ctrl.now().UTC()
	t.mu.Unlock()
}

// Snapshot returns a copy of the tracking record.
func (t *TripTracker) Snapshot() trip.Tracking {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.Clone()
}

// Target returns the point the driver is heading for in the current leg.
func (t *TripTracker) Target() (geo.Point, trip.Leg) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.Target()
}

// RefreshETA recomputes the route and ETA to the current leg's target from the last sample.
func (t *TripTracker) RefreshETA(ctx context.Context) (trip.ETA, error) {
	t.mu.Lock()
	dest, _ := t.record.Target()
	var speed *float64
	if t.record.CurrentLocation != nil && t.record.CurrentLocation.Speed != nil {
		v := *t.record.CurrentLocation.Speed
		speed = &v
	}
	t.mu.Unlock()

	eta, route, err := t.ctrl.routeETA(ctx, dest, speed)
	if err != nil {
		return trip.ETA{}, err
	}

	t.mu.Lock()
	t.record.Route = &route
	t.record.ETA = &eta
	t.mu.Unlock()
	return eta, nil
}

func (t *TripTracker) onEvent(ev Event) {
	upd, ok := ev.(LocationUpdated)
	if !ok {
		t.emit(ev)
		return
	}

	t.mu.Lock()
	sample := upd.Sample
	t.record.CurrentLocation = &sample
	t.record.UpdatedAt = t.ctrl.now().UTC()
	target, leg := t.record.Target()
	arrivedNow := !t.arrived && t.ctrl.CheckArrival(target)
	if arrivedNow {
		t.arrived = true
		t.record.Arrived = true
	}
	booking := t.record.BookingID
	t.mu.Unlock()

	t.emit(ev)
	if arrivedNow {
		t.emit(Arrived{BookingID: booking, Leg: leg, Sample: sample, At: sample.Timestamp})
	}
}
