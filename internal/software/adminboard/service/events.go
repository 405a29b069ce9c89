package service

import (
	"context"
	"time"

	"ride-booking/internal/general/contracts"
	"ride-booking/internal/ports"
)

const (
	consumerTag = "admin-trip-events"
	// consumeRetryDelay is the pause before re-subscribing after the channel drops.
	consumeRetryDelay = 2 * time.Second
)

// RunEventConsumer feeds the recent-events buffer from the trip events queue until ctx is done.
// A dropped channel is re-subscribed after a short pause so broker reconnects are survived.
func (service *adminService) RunEventConsumer(ctx context.Context) error {
	for {
		err := service.consumer.ConsumeTripEvents(ctx, consumerTag, service.prefetch, service.handleTripEvent)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			service.logger.Error(ctx, "trip_event_consume_failed", "Trip event consumer stopped", err,
				map[string]any{"queue": contracts.QueueTripEvents})
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(consumeRetryDelay):
		}
	}
}

// handleTripEvent stores one decoded trip event in the recent-events buffer.
func (service *adminService) handleTripEvent(ctx context.Context, msg contracts.TripEventMessage) error {
	occurred := msg.Timestamp
	if occurred.IsZero() {
		occurred = msg.SentAt
	}

	service.remember(ports.TripEventView{
		BookingID:  msg.BookingID,
		EventType:  msg.EventType,
		Data:       msg.Data,
		Producer:   msg.Producer,
		OccurredAt: occurred.UTC(),
		ReceivedAt: time.Now().UTC(),
	})

	service.logger.Debug(service.logger.WithBookingID(ctx, msg.BookingID), "trip_event_received",
		"Trip event consumed", map[string]any{"event_type": msg.EventType})
	return nil
}

// remember stores ev, overwriting the oldest entry once the ring is full.
func (service *adminService) remember(ev ports.TripEventView) {
	service.mu.Lock()
	defer service.mu.Unlock()

	service.events[service.head] = ev
	service.head = (service.head + 1) % len(service.events)
	if service.head == 0 {
		service.filled = true
	}
}

func (service *adminService) recentCount() int {
	service.mu.RLock()
	defer service.mu.RUnlock()

	if service.filled {
		return len(service.events)
	}
	return service.head
}

// RecentEvents returns up to limit events, newest first. A non-positive limit returns all of them.
func (service *adminService) RecentEvents(limit int) []ports.TripEventView {
	service.mu.RLock()
	defer service.mu.RUnlock()

	n := service.head
	if service.filled {
		n = len(service.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]ports.TripEventView, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (service.head - i + len(service.events)) % len(service.events)
		out = append(out, service.events[idx])
	}
	return out
}
