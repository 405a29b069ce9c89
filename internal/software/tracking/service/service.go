package service

import (
	"context"
	"errors"
	"sync"

	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/tracking/cadence"
)

var (
	// ErrForbidden is returned when the actor is not a party to the booking.
	ErrForbidden = errors.New("not allowed for this booking")
	// ErrNotTrackable is returned when tracking is requested in a status that has no live trip.
	ErrNotTrackable = errors.New("booking is not in a trackable status")
	// ErrNoTrackingSession is returned when a booking has never been tracked by this instance.
	ErrNoTrackingSession = errors.New("no tracking session for booking")
)

// Notifier pushes a message to every passenger socket following a booking.
type Notifier interface {
	NotifyBooking(ctx context.Context, bookingID string, msg any) int
}

// DeviceSource resolves the driver device feed for a booking.
type DeviceSource interface {
	Geolocation(bookingID string) ports.Geolocation
	Release(bookingID string)
}

// trackingService owns bookings and one cadence controller per tracked booking.
type trackingService struct {
	logger      *logger.Logger
	uow         ports.UnitOfWork
	bookingRepo ports.BookingRepository
	eventRepo   ports.TripEventRepository
	historyRepo ports.LocationHistoryRepository
	pub         ports.TripPublisher
	notifier    Notifier
	devices     DeviceSource
	directions  ports.DirectionsProvider
	settings    cadence.Settings

	mu       sync.Mutex
	sessions map[string]*tripSession
	closed   bool
	bg       sync.WaitGroup
}

// NewTrackingService creates a new instance of the TrackingService with the provided dependencies.
func NewTrackingService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	bookingRepo ports.BookingRepository,
	eventRepo ports.TripEventRepository,
	historyRepo ports.LocationHistoryRepository,
	pub ports.TripPublisher,
	notifier Notifier,
	devices DeviceSource,
	directions ports.DirectionsProvider,
	settings cadence.Settings,
) ports.TrackingService {
	return &trackingService{
		logger:      logger,
		uow:         uow,
		bookingRepo: bookingRepo,
		eventRepo:   eventRepo,
		historyRepo: historyRepo,
		pub:         pub,
		notifier:    notifier,
		devices:     devices,
		directions:  directions,
		settings:    settings,
		sessions:    make(map[string]*tripSession),
	}
}

// Shutdown stops every tracking session and waits for background ETA refreshes.
func (service *trackingService) Shutdown() {
	service.mu.Lock()
	service.closed = true
	sessions := make([]*tripSession, 0, len(service.sessions))
	for id, s := range service.sessions {
		sessions = append(sessions, s)
		delete(service.sessions, id)
	}
	service.mu.Unlock()

	for _, s := range sessions {
		s.discard()
	}
	service.bg.Wait()
	service.logger.Info(context.Background(), "tracking_shutdown", "All tracking sessions closed", map[string]any{
		"sessions": len(sessions),
	})
}

// loadBooking reads a booking outside of any transaction.
func (service *trackingService) loadBooking(ctx context.Context, bookingID string) (*trip.Booking, error) {
	var b *trip.Booking
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		b, err = service.bookingRepo.GetByID(txCtx, bookingID)
		return err
	})
	return b, err
}

// canView reports whether actor may read the booking. Drivers may also see open requests.
func canView(b *trip.Booking, actor ports.Actor) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RolePassenger:
		return b.PassengerID == actor.ID
	case user.RoleDriver:
		return b.AssignedTo(actor.ID) || (b.Status == trip.StatusWaiting && !b.HasDriver())
	default:
		return false
	}
}

// isParty is stricter than canView: the passenger, the assigned driver, or an admin.
func isParty(b *trip.Booking, actor ports.Actor) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RolePassenger:
		return b.PassengerID == actor.ID
	case user.RoleDriver:
		return b.AssignedTo(actor.ID)
	default:
		return false
	}
}

// NewBookingAuthorizer checks websocket attachments: the passenger follows their own
// booking and only the assigned driver may feed positions.
func NewBookingAuthorizer(uow ports.UnitOfWork, bookingRepo ports.BookingRepository) func(ctx context.Context, bookingID string, actor ports.Actor) error {
	return func(ctx context.Context, bookingID string, actor ports.Actor) error {
		var b *trip.Booking
		err := uow.WithinTx(ctx, func(txCtx context.Context) error {
			var err error
			b, err = bookingRepo.GetByID(txCtx, bookingID)
			return err
		})
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return ErrNotTrackable
		}
		if !isParty(b, actor) {
			return ErrForbidden
		}
		return nil
	}
}
