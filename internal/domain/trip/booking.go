package trip

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ride-booking/internal/domain/geo"

	"github.com/google/uuid"
)

// Place is a named point used for pickup and destination.
type Place struct {
	geo.Point
	Address string `json:"address,omitempty"`
}

// Booking is the domain entity corresponding to the `bookings` table.
type Booking struct {
	ID            string
	BookingNumber string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	PassengerID string
	DriverID    *string // nil until accepted

	VehicleType VehicleType
	Status      Status

	Pickup      Place
	Destination Place

	EstimatedFare            float64
	EstimatedDistanceKM      float64
	EstimatedDurationMinutes int

	AcceptedAt  *time.Time
	ArrivedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

var (
	ErrPassengerRequired       = errors.New("passenger id is required")
	ErrDriverRequired          = errors.New("driver id is required")
	ErrInvalidStatusTransition = errors.New("invalid trip status transition")
	ErrAlreadyAssigned         = errors.New("driver already assigned")
	ErrNoDriverAssigned        = errors.New("no driver assigned")
	ErrSamePickupDestination   = errors.New("pickup and destination must differ")
)

// NewBookingNumber returns a human-friendly booking reference like BK-20240501-1a2b3c4d.
func NewBookingNumber(now time.Time) string {
	return fmt.Sprintf("BK-%s-%s", now.UTC().Format("20060102"), uuid.NewString()[:8])
}

// NewBooking creates a booking in waiting state with a fare estimate.
func NewBooking(passengerID string, vt VehicleType, pickup, destination Place, est Estimate) (*Booking, error) {
	if passengerID = strings.TrimSpace(passengerID); passengerID == "" {
		return nil, ErrPassengerRequired
	}
	if !vt.Valid() {
		return nil, ErrInvalidVehicleType
	}
	if err := pickup.Validate(); err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if pickup.Point == destination.Point {
		return nil, ErrSamePickupDestination
	}

	now := time.Now().UTC()
	return &Booking{
		BookingNumber:            NewBookingNumber(now),
		CreatedAt:                now,
		UpdatedAt:                now,
		PassengerID:              passengerID,
		VehicleType:              vt,
		Status:                   StatusWaiting,
		Pickup:                   pickup,
		Destination:              destination,
		EstimatedFare:            est.Fare,
		EstimatedDistanceKM:      est.DistanceKM,
		EstimatedDurationMinutes: est.DurationMinutes,
	}, nil
}

// Advance moves the booking to next, assigning driverID on acceptance.
func (b *Booking) Advance(next Status, driverID string) error {
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, b.Status, next)
	}

	now := time.Now().UTC()
	switch next {
	case StatusAccepted:
		if driverID = strings.TrimSpace(driverID); driverID == "" {
			return ErrDriverRequired
		}
		if b.DriverID != nil && *b.DriverID != "" {
			return ErrAlreadyAssigned
		}
		b.DriverID = &driverID
		b.AcceptedAt = &now
	case StatusOnWay:
		if !b.HasDriver() {
			return ErrNoDriverAssigned
		}
	case StatusArrived:
		if !b.HasDriver() {
			return ErrNoDriverAssigned
		}
		b.ArrivedAt = &now
	case StatusStarted:
		b.StartedAt = &now
	case StatusCompleted:
		b.CompletedAt = &now
	case StatusCancelled:
		b.CancelledAt = &now
	}

	b.Status = next
	b.UpdatedAt = now
	return nil
}

// HasDriver reports whether a driver has been assigned.
func (b *Booking) HasDriver() bool {
	return b.DriverID != nil && *b.DriverID != ""
}

// AssignedTo reports whether driverID is the assigned driver.
func (b *Booking) AssignedTo(driverID string) bool {
	return b.HasDriver() && *b.DriverID == driverID
}

// Validate checks the coordinates of a place.
func (p Place) Validate() error {
	return p.Point.Validate()
}
