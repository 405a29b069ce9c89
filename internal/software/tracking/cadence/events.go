package cadence

import (
	"maps"
	"slices"
	"sync"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
)

// Event is the closed set of notifications emitted by a Controller or TripTracker.
type Event interface {
	isEvent()
}

// ReasonTooManyErrors is the TrackingFailed reason after repeated position errors.
const ReasonTooManyErrors = "too_many_errors"

type (
	// Started follows a successful StartTracking.
	Started struct {
		BookingID string
		Interval  time.Duration
	}

	// LocationUpdated carries a sample that passed the significant-change filter.
	LocationUpdated struct {
		BookingID string
		Sample    geo.LocationSample
		Accuracy  geo.AccuracyLevel
	}

	// PositionFailed reports one position error below the auto-stop threshold.
	PositionFailed struct {
		BookingID   string
		Err         error
		Consecutive int
	}

	// TrackingFailed is emitted once when tracking stops itself.
	TrackingFailed struct {
		BookingID string
		Reason    string
		Err       error
	}

	// Stopped is emitted whenever an active session ends.
	Stopped struct {
		BookingID  string
		LastSample *geo.LocationSample
	}

	// SinkFailed reports a push that the sink rejected. Pushes are not retried.
	SinkFailed struct {
		BookingID string
		Sample    geo.LocationSample
		Err       error
	}

	// Optimized reports a cadence change.
	Optimized struct {
		BookingID  string
		Previous   time.Duration
		Interval   time.Duration
		Conditions Conditions
	}

	// Arrived is raised by TripTracker the first time per leg the driver is within the
	// arrival radius of that leg's target.
	Arrived struct {
		BookingID string
		Leg       trip.Leg
		Sample    geo.LocationSample
		At        time.Time
	}
)

func (Started) isEvent()         {}
func (LocationUpdated) isEvent() {}
func (PositionFailed) isEvent()  {}
func (TrackingFailed) isEvent()  {}
func (Stopped) isEvent()         {}
func (SinkFailed) isEvent()      {}
func (Optimized) isEvent()       {}
func (Arrived) isEvent()         {}

// signal is a typed observer list. Observers are called synchronously, never under the
// owner's lock.
type signal struct {
	mu        sync.Mutex
	next      int
	observers map[int]func(Event)
}

// Subscribe registers fn and returns a function that removes it.
func (s *signal) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	if s.observers == nil {
		s.observers = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *signal) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, id := range slices.Sorted(maps.Keys(s.observers)) {
		fns = append(fns, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
