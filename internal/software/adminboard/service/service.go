package service

import (
	"context"
	"sync"

	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/rabbitmq"
	"ride-booking/internal/ports"
)

// recentEventsCap bounds the in-memory trip event buffer.
const recentEventsCap = 200

// Consumer streams decoded trip events until ctx is done.
type Consumer interface {
	ConsumeTripEvents(ctx context.Context, consumerTag string, prefetch int, handler rabbitmq.TripEventHandler) error
}

// Pinger checks that the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnState reports broker connectivity.
type ConnState interface {
	Connected() bool
}

// adminService encapsulates the admin dashboard logic and dependencies.
type adminService struct {
	logger      *logger.Logger
	uow         ports.UnitOfWork
	userRepo    ports.UserRepository
	bookingRepo ports.BookingRepository
	historyRepo ports.LocationHistoryRepository
	auditRepo   ports.VerificationEventRepository

	consumer Consumer
	prefetch int
	db       Pinger
	broker   ConnState

	mu     sync.RWMutex
	events []ports.TripEventView // ring, next write at head
	head   int
	filled bool
}

// Deps groups the collaborators of the admin service.
type Deps struct {
	UoW      ports.UnitOfWork
	Users    ports.UserRepository
	Bookings ports.BookingRepository
	History  ports.LocationHistoryRepository
	Audit    ports.VerificationEventRepository
	Consumer Consumer
	Prefetch int
	DB       Pinger
	Broker   ConnState
}

// NewAdminService creates a new instance of the AdminService with the provided dependencies.
func NewAdminService(logger *logger.Logger, deps Deps) ports.AdminService {
	return &adminService{
		logger:      logger,
		uow:         deps.UoW,
		userRepo:    deps.Users,
		bookingRepo: deps.Bookings,
		historyRepo: deps.History,
		auditRepo:   deps.Audit,
		consumer:    deps.Consumer,
		prefetch:    deps.Prefetch,
		db:          deps.DB,
		broker:      deps.Broker,
		events:      make([]ports.TripEventView, recentEventsCap),
	}
}
