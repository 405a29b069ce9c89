package contracts

import "time"

// TripEventMessage is published for every audited trip event.
// Routing key: "trip.event.{event_type}" on ExchangeTripTopic.
type TripEventMessage struct {
	BookingID string         `json:"booking_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Envelope
}

// TripStatusMessage is published when a booking changes status.
// Routing key: "trip.status.{status}" on ExchangeTripTopic.
type TripStatusMessage struct {
	BookingID string    `json:"booking_id"`
	Status    string    `json:"status"` // waiting|accepted|on_way|arrived|started|completed|cancelled
	DriverID  string    `json:"driver_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
