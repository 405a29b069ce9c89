package trip

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"
)

// EventType corresponds to the values accepted by the `trip_events.event_type` column.
type EventType string

const (
	EventBookingCreated  EventType = "BOOKING_CREATED"
	EventStatusChanged   EventType = "STATUS_CHANGED"
	EventTrackingStarted EventType = "TRACKING_STARTED"
	EventTrackingStopped EventType = "TRACKING_STOPPED"
	EventTrackingFailed  EventType = "TRACKING_FAILED"
	EventLocationUpdated EventType = "LOCATION_UPDATED"
	EventDriverArrived   EventType = "DRIVER_ARRIVED"
	EventCadenceChanged  EventType = "CADENCE_CHANGED"
)

var (
	ErrInvalidEventType  = errors.New("invalid trip event type")
	ErrBookingIDRequired = errors.New("booking id is required")
)

// ParseEventType normalizes (uppercases+trims) and validates an event type string.
func ParseEventType(input string) (EventType, error) {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(input)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

func (eventType EventType) Valid() bool {
	switch eventType {
	case EventBookingCreated, EventStatusChanged, EventTrackingStarted, EventTrackingStopped,
		EventTrackingFailed, EventLocationUpdated, EventDriverArrived, EventCadenceChanged:
		return true
	default:
		return false
	}
}

func (eventType EventType) String() string {
	return string(eventType)
}

// Event is an audit entry for something that happened to a booking.
type Event struct {
	ID        string
	CreatedAt time.Time
	BookingID string
	Type      EventType
	Data      map[string]any
}

// NewEvent constructs a new domain Event.
func NewEvent(bookingID string, eventType EventType, data map[string]any) (*Event, error) {
	if bookingID = strings.TrimSpace(bookingID); bookingID == "" {
		return nil, ErrBookingIDRequired
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	cp := make(map[string]any, len(data))
	maps.Copy(cp, data)

	return &Event{
		BookingID: bookingID,
		Type:      eventType,
		Data:      cp,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DataJSON returns event.Data encoded as JSON.
func (event *Event) DataJSON() ([]byte, error) {
	if event.Data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(event.Data)
}
