package service

import (
	"context"
	"time"

	"ride-booking/internal/domain/trip"
	"ride-booking/internal/general/contracts"
	"ride-booking/internal/software/tracking/cadence"
)

const (
	eventTimeout = 5 * time.Second
	etaTimeout   = 10 * time.Second
)

// reasonStopped is the tracking_ended reason for a regular stop.
const reasonStopped = "stopped"

// onTrackerEvent audits lifecycle events, forwards them to the broker and the passenger.
// It runs on the goroutine that emitted the event.
func (service *trackingService) onTrackerEvent(s *tripSession, ev cadence.Event) {
	ctx := service.logger.WithBookingID(context.Background(), s.bookingID)

	switch e := ev.(type) {
	case cadence.Started:
		service.recordEvent(ctx, s.bookingID, trip.EventTrackingStarted, map[string]any{
			"driver_id":   s.driverID,
			"interval_ms": e.Interval.Milliseconds(),
		})

	case cadence.LocationUpdated:
		service.publishEvent(ctx, s.bookingID, trip.EventLocationUpdated, map[string]any{
			"lat":            e.Sample.Coordinates.Lat,
			"lng":            e.Sample.Coordinates.Lng,
			"accuracy_level": string(e.Accuracy),
		})
		service.notifier.NotifyBooking(ctx, s.bookingID, contracts.WSPassengerLocationUpdate{
			Type:           contracts.WSTypeLocationUpdate,
			BookingID:      s.bookingID,
			Location:       contracts.GeoPoint{Lat: e.Sample.Coordinates.Lat, Lng: e.Sample.Coordinates.Lng},
			AccuracyLevel:  string(e.Accuracy),
			SpeedKMH:       e.Sample.Speed,
			HeadingDegrees: e.Sample.Heading,
			Timestamp:      e.Sample.Timestamp.UTC(),
			Envelope:       service.envelope(ctx),
		})
		service.refreshETA(s)

	case cadence.Arrived:
		service.recordEvent(ctx, s.bookingID, trip.EventDriverArrived, map[string]any{
			"leg": string(e.Leg),
			"lat": e.Sample.Coordinates.Lat,
			"lng": e.Sample.Coordinates.Lng,
			"at":  e.At.UTC().Format(time.RFC3339),
		})
		service.notifier.NotifyBooking(ctx, s.bookingID, contracts.WSPassengerTripStatus{
			Type:      contracts.WSTypeDriverArrived,
			BookingID: s.bookingID,
			Leg:       string(e.Leg),
			Envelope:  service.envelope(ctx),
		})

	case cadence.TrackingFailed:
		data := map[string]any{"reason": e.Reason}
		if e.Err != nil {
			data["error"] = e.Err.Error()
		}
		service.recordEvent(ctx, s.bookingID, trip.EventTrackingFailed, data)
		service.notifier.NotifyBooking(ctx, s.bookingID, contracts.WSPassengerTripStatus{
			Type:      contracts.WSTypeTrackingEnded,
			BookingID: s.bookingID,
			Reason:    e.Reason,
			Envelope:  service.envelope(ctx),
		})

	case cadence.Stopped:
		data := map[string]any{}
		if e.LastSample != nil {
			data["last_lat"] = e.LastSample.Coordinates.Lat
			data["last_lng"] = e.LastSample.Coordinates.Lng
		}
		service.recordEvent(ctx, s.bookingID, trip.EventTrackingStopped, data)
		service.notifier.NotifyBooking(ctx, s.bookingID, contracts.WSPassengerTripStatus{
			Type:      contracts.WSTypeTrackingEnded,
			BookingID: s.bookingID,
			Reason:    reasonStopped,
			Envelope:  service.envelope(ctx),
		})

	case cadence.Optimized:
		service.recordEvent(ctx, s.bookingID, trip.EventCadenceChanged, map[string]any{
			"previous_ms": e.Previous.Milliseconds(),
			"interval_ms": e.Interval.Milliseconds(),
			"network":     e.Conditions.NetworkType,
			"background":  e.Conditions.BackgroundMode,
		})

	case cadence.PositionFailed:
		details := map[string]any{"consecutive": e.Consecutive}
		if e.Err != nil {
			details["error"] = e.Err.Error()
		}
		service.logger.Warn(ctx, "position_failed", "Device reported a position error", details)
	}
}

// recordEvent appends the event to trip_events and publishes it. Failures are logged only.
func (service *trackingService) recordEvent(ctx context.Context, bookingID string, eventType trip.EventType, data map[string]any) {
	ev, err := trip.NewEvent(bookingID, eventType, data)
	if err != nil {
		service.logger.Error(ctx, "trip_event_invalid", "Failed to build trip event", err, map[string]any{
			"event_type": eventType.String(),
		})
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	if err := service.uow.WithinTx(dbCtx, func(txCtx context.Context) error {
		return service.eventRepo.Append(txCtx, ev)
	}); err != nil {
		service.logger.Error(ctx, "trip_event_persist_failed", "Failed to persist trip event", err, map[string]any{
			"event_type": eventType.String(),
		})
	}

	service.publishEvent(ctx, bookingID, eventType, data)
}

// publishEvent sends trip.event.<type> on the trip topic exchange.
func (service *trackingService) publishEvent(ctx context.Context, bookingID string, eventType trip.EventType, data map[string]any) {
	msg := contracts.TripEventMessage{
		BookingID: bookingID,
		EventType: eventType.String(),
		Data:      data,
		Timestamp: time.Now().UTC(),
		Envelope:  service.envelope(ctx),
	}
	service.published(ctx, contracts.TripEventRoutingKey(msg.EventType), service.pub.PublishTripEvent(ctx, msg))
}

// publishStatus sends trip.status.<status> on the trip topic exchange.
func (service *trackingService) publishStatus(ctx context.Context, b *trip.Booking) {
	msg := contracts.TripStatusMessage{
		BookingID: b.ID,
		Status:    b.Status.String(),
		Timestamp: b.UpdatedAt.UTC(),
		Envelope:  service.envelope(ctx),
	}
	if b.DriverID != nil {
		msg.DriverID = *b.DriverID
	}
	service.published(ctx, contracts.TripStatusRoutingKey(msg.Status), service.pub.PublishTripStatus(ctx, msg))
}

// published logs the outcome of a trip topic publish; failures never fail the caller.
func (service *trackingService) published(ctx context.Context, routingKey string, err error) {
	if err != nil {
		service.logger.Error(ctx, "message_publish_failed", "Failed to publish to RabbitMQ", err, map[string]any{
			"routing_key": routingKey,
		})
		return
	}
	service.logger.Debug(ctx, "message_published", "Published to RabbitMQ", map[string]any{
		"routing_key": routingKey,
	})
}

// refreshETA recomputes the ETA in the background at most once per etaRefreshEvery and
// pushes it to the passenger.
func (service *trackingService) refreshETA(s *tripSession) {
	now := time.Now()
	if !s.claimETARefresh(now) {
		return
	}

	service.mu.Lock()
	if service.closed {
		service.mu.Unlock()
		s.etaRefreshed(now, false)
		return
	}
	service.bg.Add(1)
	service.mu.Unlock()

	go func() {
		defer service.bg.Done()

		ctx := service.logger.WithBookingID(context.Background(), s.bookingID)
		etaCtx, cancel := context.WithTimeout(ctx, etaTimeout)
		defer cancel()

		eta, err := s.tracker.RefreshETA(etaCtx)
		s.etaRefreshed(now, err == nil)
		if err != nil {
			service.logger.Debug(ctx, "eta_refresh_failed", "Could not refresh ETA", map[string]any{"error": err.Error()})
			return
		}
		service.notifier.NotifyBooking(ctx, s.bookingID, contracts.WSPassengerETAUpdate{
			Type:        contracts.WSTypeETAUpdate,
			BookingID:   s.bookingID,
			ArrivalTime: eta.ArrivalTime,
			DistanceKM:  eta.DistanceKM,
			Minutes:     eta.Minutes,
			Envelope:    service.envelope(ctx),
		})
	}()
}
