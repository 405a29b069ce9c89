package trip

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a booking as seen by the customer.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusAccepted  Status = "accepted"
	StatusOnWay     Status = "on_way"
	StatusArrived   Status = "arrived"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid trip status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusWaiting, StatusAccepted, StatusOnWay, StatusArrived, StatusStarted, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
func (status Status) CanTransitionTo(next Status) bool {
	if next == StatusCancelled {
		return !status.Terminal()
	}
	switch status {
	case StatusWaiting:
		return next == StatusAccepted
	case StatusAccepted:
		return next == StatusOnWay || next == StatusArrived
	case StatusOnWay:
		return next == StatusArrived
	case StatusArrived:
		return next == StatusStarted
	case StatusStarted:
		return next == StatusCompleted
	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Trackable reports whether live location tracking makes sense in this status.
func (status Status) Trackable() bool {
	switch status {
	case StatusAccepted, StatusOnWay, StatusArrived, StatusStarted:
		return true
	default:
		return false
	}
}

// Leg names the part of the journey the driver is currently covering.
type Leg string

const (
	// LegPickup runs from acceptance until the driver reaches the passenger.
	LegPickup Leg = "pickup"
	// LegDropoff runs from the pickup to the destination.
	LegDropoff Leg = "dropoff"
)

// Leg maps a status onto the journey leg it belongs to. The driver only heads for the
// destination once they have arrived at the pickup.
func (status Status) Leg() Leg {
	switch status {
	case StatusWaiting, StatusAccepted, StatusOnWay:
		return LegPickup
	default:
		return LegDropoff
	}
}
