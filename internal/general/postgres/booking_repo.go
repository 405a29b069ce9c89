package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ride-booking/internal/domain/trip"
	"ride-booking/internal/ports"

	"github.com/jackc/pgx/v5"
)

// BookingRepo persists bookings using pgx and plain SQL.
type BookingRepo struct{}

// NewBookingRepo constructs a new BookingRepo.
func NewBookingRepo() ports.BookingRepository {
	return &BookingRepo{}
}

// CreateBooking inserts a new booking row and writes an initial BOOKING_CREATED event.
func (repo *BookingRepo) CreateBooking(ctx context.Context, b *trip.Booking) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (
			booking_number, passenger_id, vehicle_type, status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			estimated_fare, estimated_distance_km, estimated_duration_minutes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`,
		b.BookingNumber,
		b.PassengerID,
		b.VehicleType.String(),
		b.Status.String(),
		b.Pickup.Lat, b.Pickup.Lng, b.Pickup.Address,
		b.Destination.Lat, b.Destination.Lng, b.Destination.Address,
		b.EstimatedFare,
		b.EstimatedDistanceKM,
		b.EstimatedDurationMinutes,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return err
	}

	return insertTripEvent(ctx, tx, b.ID, trip.EventBookingCreated, map[string]any{
		"status":         b.Status.String(),
		"vehicle_type":   b.VehicleType.String(),
		"estimated_fare": b.EstimatedFare,
	})
}

// GetByID fetches a booking by primary key (uuid).
func (repo *BookingRepo) GetByID(ctx context.Context, id string) (*trip.Booking, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out         trip.Booking
		vehicleType string
		status      string
	)

	err = tx.QueryRow(ctx, `
		SELECT
			id, booking_number, created_at, updated_at, passenger_id, driver_id,
			vehicle_type, status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			estimated_fare, estimated_distance_km, estimated_duration_minutes,
			accepted_at, arrived_at, started_at, completed_at, cancelled_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.BookingNumber, &out.CreatedAt, &out.UpdatedAt, &out.PassengerID, &out.DriverID,
		&vehicleType, &status,
		&out.Pickup.Lat, &out.Pickup.Lng, &out.Pickup.Address,
		&out.Destination.Lat, &out.Destination.Lng, &out.Destination.Address,
		&out.EstimatedFare, &out.EstimatedDistanceKM, &out.EstimatedDurationMinutes,
		&out.AcceptedAt, &out.ArrivedAt, &out.StartedAt, &out.CompletedAt, &out.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out.VehicleType = trip.VehicleType(vehicleType)
	out.Status = trip.Status(status)

	return &out, nil
}

// UpdateStatus persists a status change made by trip.Booking.Advance. The row must still be in
// status from, otherwise ports.ErrConflict is returned.
func (repo *BookingRepo) UpdateStatus(ctx context.Context, b *trip.Booking, from trip.Status) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status       = $3,
		    driver_id    = $4,
		    updated_at   = $5,
		    accepted_at  = $6,
		    arrived_at   = $7,
		    started_at   = $8,
		    completed_at = $9,
		    cancelled_at = $10
		WHERE id = $1 AND status = $2
	`,
		b.ID,
		from.String(),
		b.Status.String(),
		b.DriverID,
		b.UpdatedAt,
		b.AcceptedAt, b.ArrivedAt, b.StartedAt, b.CompletedAt, b.CancelledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrConflict
	}

	// insert status change event
	data := map[string]any{
		"old_status": from.String(),
		"new_status": b.Status.String(),
		"timestamp":  b.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if b.DriverID != nil {
		data["driver_id"] = *b.DriverID
	}
	return insertTripEvent(ctx, tx, b.ID, trip.EventStatusChanged, data)
}

// insertTripEvent writes a row into trip_events with encoded event_data.
func insertTripEvent(ctx context.Context, tx pgx.Tx, bookingID string, eventType trip.EventType, eventData any) error {
	body, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trip_events (booking_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
	`, bookingID, eventType.String(), string(body))
	return err
}
