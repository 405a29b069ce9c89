package postgres

import (
	"context"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/ports"
)

// LocationHistoryRepo persists location history rows using pgx and plain SQL.
type LocationHistoryRepo struct{}

// NewLocationHistoryRepo constructs a new LocationHistoryRepo.
func NewLocationHistoryRepo() ports.LocationHistoryRepository {
	return &LocationHistoryRepo{}
}

// Archive inserts a single location_history record.
func (repo *LocationHistoryRepo) Archive(ctx context.Context, record *geo.LocationHistory) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// validate domain invariants
	if err := record.Validate(); err != nil {
		return err
	}

	var insertedID string
	err = tx.QueryRow(ctx, `
		INSERT INTO location_history (
			booking_id, driver_id, latitude, longitude,
			accuracy_meters, speed_kmh, heading_degrees, altitude_meters,
			source, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		record.BookingID,
		record.DriverID,
		record.Latitude,
		record.Longitude,
		record.AccuracyMeters,
		record.SpeedKMH,
		record.HeadingDegrees,
		record.AltitudeMeters,
		string(record.Source),
		record.RecordedAt,
	).Scan(&insertedID)
	if err != nil {
		return err
	}

	record.ID = geo.ID(insertedID)

	return nil
}

// CountRecordedBetween returns the number of archived samples recorded within [start, end).
func (repo *LocationHistoryRepo) CountRecordedBetween(ctx context.Context, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM location_history
		WHERE recorded_at >= $1 AND recorded_at < $2
	`, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}
