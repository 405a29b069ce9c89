package trip

import (
	"time"

	"ride-booking/internal/domain/geo"
)

// Route is the directions-provider view of the remaining trip.
type Route struct {
	DistanceMeters           int `json:"distance_meters"`
	DurationSeconds          int `json:"duration_seconds"`
	DurationInTrafficSeconds int `json:"duration_in_traffic_seconds,omitempty"`
}

// ETA is an arrival estimate computed from the latest sample.
type ETA struct {
	ArrivalTime time.Time `json:"arrival_time"`
	DistanceKM  float64   `json:"distance_km"`
	Minutes     int       `json:"duration_minutes"`
}

// Tracking is the live view of a booking while it is being tracked.
type Tracking struct {
	BookingID       string              `json:"booking_id"`
	DriverID        string              `json:"driver_id"`
	CustomerID      string              `json:"customer_id"`
	Status          Status              `json:"status"`
	StartLocation   geo.Point           `json:"start_location"`
	EndLocation     geo.Point           `json:"end_location"`
	CurrentLocation *geo.LocationSample `json:"current_location,omitempty"`
	Route           *Route              `json:"route,omitempty"`
	ETA             *ETA                `json:"eta,omitempty"`
	Arrived         bool                `json:"arrived"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewTracking seeds a tracking record from a booking with an assigned driver.
func NewTracking(b *Booking) (*Tracking, error) {
	if !b.HasDriver() {
		return nil, ErrNoDriverAssigned
	}
	return &Tracking{
		BookingID:     b.ID,
		DriverID:      *b.DriverID,
		CustomerID:    b.PassengerID,
		Status:        b.Status,
		StartLocation: b.Pickup.Point,
		EndLocation:   b.Destination.Point,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *Tracking) Clone() Tracking {
	out := *t
	if t.CurrentLocation != nil {
		loc := *t.CurrentLocation
		out.CurrentLocation = &loc
	}
	if t.Route != nil {
		r := *t.Route
		out.Route = &r
	}
	if t.ETA != nil {
		e := *t.ETA
		out.ETA = &e
	}
	return out
}

// Target is the point the driver is heading for in the current leg.
func (t *Tracking) Target() (geo.Point, Leg) {
	leg := t.Status.Leg()
	if leg == LegPickup {
		return t.StartLocation, leg
	}
	return t.EndLocation, leg
}
