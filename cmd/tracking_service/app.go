package trackingservice

import (
	"context"
	"fmt"
	"net/http"

	"ride-booking/internal/general/config"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/maps"
	"ride-booking/internal/general/postgres"
	"ride-booking/internal/general/rabbitmq"
	"ride-booking/internal/general/server"
	"ride-booking/internal/general/websocket"
	"ride-booking/internal/software/tracking/cadence"
	"ride-booking/internal/software/tracking/handler"
	"ride-booking/internal/software/tracking/service"
)

// Run wires the booking and tracking service and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, maxConcurrent int) error {
	logger := logger.New("tracking-service")
	defer func() { _ = logger.Sync() }()
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	pub := rabbitmq.NewMQPublisher(rmq)
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)

	uow := postgres.NewUnitOfWork(pool)
	bookingRepo := postgres.NewBookingRepo()
	eventRepo := postgres.NewTripEventRepo()
	historyRepo := postgres.NewLocationHistoryRepo()

	// the socket layer authorizes against bookings directly so it can be built before the service
	feeds := websocket.NewFeedRegistry()
	ws := websocket.NewWebSocket(logger, jwtManager, feeds, service.NewBookingAuthorizer(uow, bookingRepo))

	directions, err := maps.NewDirections(cfg.Maps, nil)
	if err != nil {
		logger.Error(ctx, "maps_client_failed", "Failed to build directions client", err, nil)
		return err
	}

	svc := service.NewTrackingService(
		logger, uow, bookingRepo, eventRepo, historyRepo,
		pub, ws, feeds,
		directions,
		cadence.SettingsFromConfig(cfg.Tracking),
	)
	defer svc.Shutdown()

	mux := http.NewServeMux()
	handler.NewTrackingHTTPHandler(svc, logger, jwtManager, ws).RegisterRoutes(mux)

	srv := server.New(ctx, server.Options{
		Service:       "tracking-service",
		Port:          cfg.Services.TrackingServicePort,
		MaxConcurrent: maxConcurrent,
	}, mux)

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracking Service started on port %d", cfg.Services.TrackingServicePort),
		map[string]any{"port": cfg.Services.TrackingServicePort, "max_concurrent": maxConcurrent},
	)

	return server.Serve(ctx, logger, srv)
}
