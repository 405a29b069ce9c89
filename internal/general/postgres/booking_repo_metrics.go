package postgres

import (
	"context"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/ports"
)

// activeStatuses are the non-terminal statuses with a driver attached.
const activeStatuses = `('accepted', 'on_way', 'arrived', 'started')`

// CountActive returns the number of bookings with an assigned driver in a non-terminal state.
func (repo *BookingRepo) CountActive(ctx context.Context) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE status IN `+activeStatuses).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CountCreatedBetween returns the number of bookings created within [start, end).
func (repo *BookingRepo) CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE created_at >= $1 AND created_at < $2
	`, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CountByStatus returns booking counts keyed by status.
func (repo *BookingRepo) CountByStatus(ctx context.Context) (map[trip.Status]int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT status, COUNT(*)
		FROM bookings
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[trip.Status]int, 7)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[trip.Status(status)] = count
	}

	return out, rows.Err()
}

// ListActive returns a page of active bookings with the last archived driver position.
func (repo *BookingRepo) ListActive(ctx context.Context, offset, limit int) ([]ports.ActiveTripRow, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := tx.Query(ctx, `
		WITH base AS (
			SELECT
				b.id, b.booking_number, b.status, b.passenger_id, b.driver_id,
				b.pickup_address, b.destination_address, b.accepted_at, b.started_at
			FROM bookings b
			WHERE b.status IN `+activeStatuses+`
			ORDER BY b.accepted_at DESC NULLS LAST, b.created_at DESC
			OFFSET $1
			LIMIT  $2
		),
		latest AS (
			SELECT DISTINCT ON (lh.booking_id)
				lh.booking_id, lh.latitude, lh.longitude, lh.recorded_at
			FROM location_history lh
			WHERE lh.booking_id IN (SELECT id FROM base)
			ORDER BY lh.booking_id, lh.recorded_at DESC
		)
		SELECT
			base.id, base.booking_number, base.status, base.passenger_id, COALESCE(base.driver_id::text, ''),
			base.pickup_address, base.destination_address, base.accepted_at, base.started_at,
			latest.latitude, latest.longitude, latest.recorded_at
		FROM base
		LEFT JOIN latest ON latest.booking_id = base.id
		ORDER BY base.accepted_at DESC NULLS LAST
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.ActiveTripRow
	for rows.Next() {
		var (
			row      ports.ActiveTripRow
			lat, lng *float64
		)
		if err := rows.Scan(
			&row.BookingID, &row.BookingNumber, &row.Status, &row.PassengerID, &row.DriverID,
			&row.PickupAddress, &row.DestinationAddress, &row.AcceptedAt, &row.StartedAt,
			&lat, &lng, &row.LastLocationAt,
		); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			row.LastLocation = &geo.Point{Lat: *lat, Lng: *lng}
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
