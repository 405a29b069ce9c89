package postgres

import (
	"context"

	"ride-booking/internal/domain/trip"
	"ride-booking/internal/ports"
)

// TripEventRepo persists trip events using pgx and plain SQL.
type TripEventRepo struct{}

// NewTripEventRepo constructs a new TripEventRepo.
func NewTripEventRepo() ports.TripEventRepository {
	return &TripEventRepo{}
}

// Append inserts a new trip_events row.
func (repo *TripEventRepo) Append(ctx context.Context, event *trip.Event) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// serialize event data to JSON
	data, err := event.DataJSON()
	if err != nil {
		return err
	}

	return tx.QueryRow(ctx, `
		INSERT INTO trip_events (booking_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id, created_at
	`,
		event.BookingID,
		event.Type.String(),
		string(data),
	).Scan(&event.ID, &event.CreatedAt)
}
