package contracts

import "time"

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // request id of the call that caused the message
	Producer      string    `json:"producer,omitempty"`       // producer service name, e.g. "tracking-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // send time (UTC)
}

type GeoPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}
