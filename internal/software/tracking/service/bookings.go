package service

import (
	"context"
	"errors"
	"math"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/contracts"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/ports"
)

// CreateBooking quotes the trip from a driving route, falling back to straight-line distance,
// and stores the booking in waiting state.
func (service *trackingService) CreateBooking(ctx context.Context, in ports.CreateBookingInput) (ports.BookingView, error) {
	// validate first so an invalid request never reaches the directions provider
	b, err := trip.NewBooking(in.PassengerID, in.VehicleType, in.Pickup, in.Destination, trip.Estimate{})
	if err != nil {
		return ports.BookingView{}, err
	}

	est := service.estimate(ctx, in.VehicleType, in.Pickup.Point, in.Destination.Point)
	b.EstimatedFare = est.Fare
	b.EstimatedDistanceKM = est.DistanceKM
	b.EstimatedDurationMinutes = est.DurationMinutes

	if err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.bookingRepo.CreateBooking(txCtx, b)
	}); err != nil {
		service.logger.Error(ctx, "booking_create_failed", "Failed to create booking", err, map[string]any{
			"passenger_id": in.PassengerID,
		})
		return ports.BookingView{}, err
	}

	ctx = service.logger.WithBookingID(ctx, b.ID)
	service.publishEvent(ctx, b.ID, trip.EventBookingCreated, map[string]any{
		"vehicle_type":   b.VehicleType.String(),
		"estimated_fare": b.EstimatedFare,
	})
	service.logger.Info(ctx, "booking_created", "Booking created", map[string]any{
		"booking_number": b.BookingNumber,
		"distance_km":    b.EstimatedDistanceKM,
		"fare":           b.EstimatedFare,
	})

	return bookingView(b), nil
}

// estimate prefers the directions provider and degrades to haversine at urban speed.
func (service *trackingService) estimate(ctx context.Context, vt trip.VehicleType, from, to geo.Point) trip.Estimate {
	if service.directions != nil {
		routes, err := service.directions.Directions(ctx, from, to, ports.DirectionsOptions{
			TravelMode:    "driving",
			DepartureTime: time.Now(),
			TrafficModel:  "best_guess",
		})
		if err == nil && len(routes) > 0 && routes[0].DistanceMeters > 0 {
			r := routes[0]
			seconds := r.DurationSeconds
			if r.DurationInTrafficSeconds > 0 {
				seconds = r.DurationInTrafficSeconds
			}
			minutes := max(int(math.Ceil(float64(seconds)/60)), 1)
			return trip.NewEstimate(vt, float64(r.DistanceMeters)/1000, minutes)
		}
		if err != nil {
			service.logger.Warn(ctx, "estimate_directions_failed", "Directions unavailable, using straight-line estimate", map[string]any{
				"error": err.Error(),
			})
		}
	}

	km := geo.HaversineKM(from, to)
	return trip.NewEstimate(vt, km, trip.EstimateDurationMinutes(km))
}

// GetBooking returns the booking if actor may see it.
func (service *trackingService) GetBooking(ctx context.Context, actor ports.Actor, bookingID string) (ports.BookingView, error) {
	b, err := service.loadBooking(ctx, bookingID)
	if err != nil {
		return ports.BookingView{}, err
	}
	if !canView(b, actor) {
		return ports.BookingView{}, ErrForbidden
	}
	return bookingView(b), nil
}

// UpdateBookingStatus advances the booking. Drivers accept open bookings and progress the ones
// assigned to them; the passenger, the assigned driver and admins may cancel.
func (service *trackingService) UpdateBookingStatus(ctx context.Context, in ports.UpdateStatusInput) (ports.BookingView, error) {
	ctx = service.logger.WithBookingID(ctx, in.BookingID)

	var (
		b    *trip.Booking
		from trip.Status
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		b, err = service.bookingRepo.GetByID(txCtx, in.BookingID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(b, in.Actor, in.Status); err != nil {
			return err
		}

		from = b.Status
		if err := b.Advance(in.Status, in.Actor.ID); err != nil {
			return err
		}
		return service.bookingRepo.UpdateStatus(txCtx, b, from)
	})
	if err != nil {
		if !errors.Is(err, ErrForbidden) && !errors.Is(err, ports.ErrNotFound) {
			service.logger.Error(ctx, "booking_status_update_failed", "Failed to update booking status", err, map[string]any{
				"status": in.Status.String(),
			})
		}
		return ports.BookingView{}, err
	}

	service.logger.Info(ctx, "booking_status_updated", "Booking status updated", map[string]any{
		"from": from.String(),
		"to":   b.Status.String(),
	})

	service.publishStatus(ctx, b)
	service.notifier.NotifyBooking(ctx, b.ID, contracts.WSPassengerTripStatus{
		Type:      contracts.WSTypeTripStatus,
		BookingID: b.ID,
		Status:    b.Status.String(),
		Envelope:  service.envelope(ctx),
	})
	service.syncSession(ctx, b)

	return bookingView(b), nil
}

// authorizeTransition checks who may move a booking to next.
func authorizeTransition(b *trip.Booking, actor ports.Actor, next trip.Status) error {
	switch next {
	case trip.StatusCancelled:
		if isParty(b, actor) {
			return nil
		}
	case trip.StatusAccepted:
		if actor.Role == user.RoleDriver {
			return nil
		}
	default:
		if actor.Role == user.RoleDriver && b.AssignedTo(actor.ID) {
			return nil
		}
	}
	return ErrForbidden
}

// syncSession mirrors a status change into the live session and ends it on terminal statuses.
func (service *trackingService) syncSession(ctx context.Context, b *trip.Booking) {
	service.mu.Lock()
	s, ok := service.sessions[b.ID]
	if ok && b.Status.Terminal() {
		delete(service.sessions, b.ID)
	}
	service.mu.Unlock()

	if !ok {
		if b.Status.Terminal() {
			service.devices.Release(b.ID)
		}
		return
	}

	s.tracker.SetStatus(b.Status)
	if b.Status.Terminal() {
		s.close()
		service.devices.Release(b.ID)
		service.logger.Info(ctx, "tracking_session_closed", "Tracking session closed", map[string]any{
			"status": b.Status.String(),
		})
	}
}

func bookingView(b *trip.Booking) ports.BookingView {
	v := ports.BookingView{
		ID:                       b.ID,
		BookingNumber:            b.BookingNumber,
		Status:                   b.Status.String(),
		PassengerID:              b.PassengerID,
		VehicleType:              b.VehicleType.String(),
		Pickup:                   b.Pickup,
		Destination:              b.Destination,
		EstimatedFare:            b.EstimatedFare,
		EstimatedDistanceKM:      b.EstimatedDistanceKM,
		EstimatedDurationMinutes: b.EstimatedDurationMinutes,
		CreatedAt:                b.CreatedAt,
		UpdatedAt:                b.UpdatedAt,
	}
	if b.DriverID != nil {
		v.DriverID = *b.DriverID
	}
	return v
}

func (service *trackingService) envelope(ctx context.Context) contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: logger.RequestID(ctx),
		Producer:      contracts.ProducerTrackingService,
		SentAt:        time.Now().UTC(),
	}
}
