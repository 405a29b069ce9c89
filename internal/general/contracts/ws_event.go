package contracts

import "time"

// Passenger websocket message types.
const (
	WSTypeLocationUpdate = "driver_location_update"
	WSTypeTripStatus     = "trip_status_update"
	WSTypeDriverArrived  = "driver_arrived"
	WSTypeTrackingEnded  = "tracking_ended"
	WSTypeETAUpdate      = "eta_update"
)

// Device websocket frame types.
const (
	WSTypePosition      = "position"
	WSTypePositionError = "position_error"
)

// WSPassengerLocationUpdate is pushed to the passenger for every accepted sample.
type WSPassengerLocationUpdate struct {
	Type           string    `json:"type"` // "driver_location_update"
	BookingID      string    `json:"booking_id"`
	Location       GeoPoint  `json:"location"`
	AccuracyLevel  string    `json:"accuracy_level"`
	SpeedKMH       *float64  `json:"speed_kmh,omitempty"`
	HeadingDegrees *float64  `json:"heading_degrees,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Envelope
}

// WSPassengerTripStatus mirrors status and lifecycle notices sent over the passenger websocket.
type WSPassengerTripStatus struct {
	Type      string `json:"type"` // trip_status_update | driver_arrived | tracking_ended
	BookingID string `json:"booking_id"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Leg       string `json:"leg,omitempty"` // pickup | dropoff, set on driver_arrived
	Envelope
}

// WSPassengerETAUpdate carries a freshly computed arrival estimate.
type WSPassengerETAUpdate struct {
	Type        string    `json:"type"` // "eta_update"
	BookingID   string    `json:"booking_id"`
	ArrivalTime time.Time `json:"arrival_time"`
	DistanceKM  float64   `json:"distance_km"`
	Minutes     int       `json:"duration_minutes"`
	Envelope
}
