package adminservice

import (
	"context"
	"fmt"
	"net/http"

	"ride-booking/internal/general/config"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/postgres"
	"ride-booking/internal/general/rabbitmq"
	"ride-booking/internal/general/server"
	"ride-booking/internal/software/adminboard/handler"
	"ride-booking/internal/software/adminboard/service"

	"golang.org/x/sync/errgroup"
)

// Run wires the admin dashboard and its trip event consumer and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, prefetch, maxConcurrent int) error {
	logger := logger.New("admin-service")
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

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)

	svc := service.NewAdminService(logger, service.Deps{
		UoW:      postgres.NewUnitOfWork(pool),
		Users:    postgres.NewUserRepo(),
		Bookings: postgres.NewBookingRepo(),
		History:  postgres.NewLocationHistoryRepo(),
		Audit:    postgres.NewVerificationEventRepo(),
		Consumer: rmq,
		Prefetch: prefetch,
		DB:       pool,
		Broker:   rmq,
	})

	mux := http.NewServeMux()
	handler.NewAdminHTTPHandler(svc, logger, jwtManager).RegisterRoutes(mux)

	srv := server.New(ctx, server.Options{
		Service:       "admin-service",
		Port:          cfg.Services.AdminServicePort,
		MaxConcurrent: maxConcurrent,
	}, mux)

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Admin dashboard started on port %d", cfg.Services.AdminServicePort),
		map[string]any{"port": cfg.Services.AdminServicePort, "max_concurrent": maxConcurrent, "prefetch": prefetch},
	)

	// a failing listener stops the consumer and vice versa
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx, logger, srv) })
	g.Go(func() error { return svc.RunEventConsumer(gctx) })
	return g.Wait()
}
