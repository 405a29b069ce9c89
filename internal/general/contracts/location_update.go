package contracts

import "time"

// LocationUpdateMessage is broadcast by the tracking service on every periodic push.
// Exchange: ExchangeLocationFanout (fanout, no routing key).
type LocationUpdateMessage struct {
	BookingID      string    `json:"booking_id"`
	DriverID       string    `json:"driver_id"`
	Location       GeoPoint  `json:"location"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	SpeedKMH       *float64  `json:"speed_kmh,omitempty"`
	HeadingDegrees *float64  `json:"heading_degrees,omitempty"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
	Envelope
}
