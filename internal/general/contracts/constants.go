package contracts

import "strings"

// Exchanges
const (
	ExchangeTripTopic      = "trip_topic"
	ExchangeLocationFanout = "location_fanout"
)

// Queues
const (
	QueueTripEvents        = "trip_events"
	QueueLocationUpdates   = "location_updates_admin"
	QueueTripStatusUpdates = "trip_status"
)

// Routing patterns
const (
	RouteTripEventPrefix  = "trip.event."  // {event_type}
	RouteTripStatusPrefix = "trip.status." // {status}
)

// Producers
const (
	ProducerAuthService     = "auth-service"
	ProducerTrackingService = "tracking-service"
	ProducerAdminService    = "admin-service"
)

// TripEventRoutingKey is "trip.event.<event_type>" with the type lowercased.
func TripEventRoutingKey(eventType string) string {
	return RouteTripEventPrefix + strings.ToLower(eventType)
}

// TripStatusRoutingKey is "trip.status.<status>" with the status lowercased.
func TripStatusRoutingKey(status string) string {
	return RouteTripStatusPrefix + strings.ToLower(status)
}
