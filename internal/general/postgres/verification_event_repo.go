package postgres

import (
	"context"
	"time"

	"ride-booking/internal/ports"
)

// VerificationEventRepo stores phone sign-in audit rows.
type VerificationEventRepo struct{}

// NewVerificationEventRepo constructs a new VerificationEventRepo.
func NewVerificationEventRepo() ports.VerificationEventRepository {
	return &VerificationEventRepo{}
}

// Append inserts one phone_verification_events row.
func (repo *VerificationEventRepo) Append(ctx context.Context, e ports.VerificationEvent) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO phone_verification_events (phone_masked, action, outcome, kind, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, e.PhoneMasked, e.Action, e.Outcome, e.Kind, createdAt)
	return err
}

// CountBetween counts events with the given action and outcome within [start, end).
func (repo *VerificationEventRepo) CountBetween(ctx context.Context, action, outcome string, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM phone_verification_events
		WHERE action = $1 AND outcome = $2
		  AND created_at >= $3 AND created_at < $4
	`, action, outcome, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}
