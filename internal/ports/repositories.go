package ports

import (
	"context"
	"errors"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
)

var (
	// ErrNotFound is returned by repositories when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row changed underneath a conditional update.
	ErrConflict = errors.New("concurrent update")
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the methods for managing user data.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByPhone(ctx context.Context, phone string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateProfile(ctx context.Context, u *user.User) error
	CountByRole(ctx context.Context) (map[user.Role]int, error)
}

// BookingRepository defines the methods for managing bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *trip.Booking) error
	GetByID(ctx context.Context, id string) (*trip.Booking, error)
	UpdateStatus(ctx context.Context, b *trip.Booking, from trip.Status) error
	CountByStatus(ctx context.Context) (map[trip.Status]int, error)
	CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error)
	CountActive(ctx context.Context) (int, error)
	ListActive(ctx context.Context, offset, limit int) ([]ActiveTripRow, error)
}

// TripEventRepository appends booking audit events.
type TripEventRepository interface {
	Append(ctx context.Context, e *trip.Event) error
}

// LocationHistoryRepository defines the methods for archiving location history data.
type LocationHistoryRepository interface {
	Archive(ctx context.Context, record *geo.LocationHistory) error
	CountRecordedBetween(ctx context.Context, start, end time.Time) (int, error)
}

// VerificationEvent is one audited phone sign-in step. The phone number is stored masked.
type VerificationEvent struct {
	PhoneMasked string
	Action      string // send | verify | resend
	Outcome     string // success | failure
	Kind        string // verification kind on failure
	CreatedAt   time.Time
}

// VerificationEventRepository stores phone sign-in audit rows.
type VerificationEventRepository interface {
	Append(ctx context.Context, e VerificationEvent) error
	CountBetween(ctx context.Context, action, outcome string, start, end time.Time) (int, error)
}
