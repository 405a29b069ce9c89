package authservice

import (
	"context"
	"fmt"
	"net/http"

	"ride-booking/internal/general/config"
	"ride-booking/internal/general/identitytoolkit"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/postgres"
	"ride-booking/internal/general/recaptcha"
	"ride-booking/internal/general/server"
	"ride-booking/internal/software/auth/handler"
	"ride-booking/internal/software/auth/service"
	"ride-booking/internal/software/auth/session"
)

// Run wires the auth service and blocks until ctx is cancelled.
// issueTokens mounts the dev-only POST /tokens endpoint.
func Run(ctx context.Context, configPath string, maxConcurrent int, issueTokens bool) error {
	logger := logger.New("auth-service")
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

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)

	uow := postgres.NewUnitOfWork(pool)
	userRepo := postgres.NewUserRepo()
	auditRepo := postgres.NewVerificationEventRepo()

	// phone sign-in: one provider client and one limiter shared by every session
	provider := identitytoolkit.New(cfg.PhoneAuth, nil)
	challenges := recaptcha.NewVerifier(cfg.Recaptcha, nil).Factory()
	limiter := session.NewRateLimiter(cfg.PhoneAuth.MinInterval, cfg.PhoneAuth.Window)
	sessions := session.NewStore(cfg.PhoneAuth.SessionTTL, limiter, func() *session.Manager {
		return session.NewManager(provider, challenges, limiter, cfg.PhoneAuth, logger)
	})

	svc := service.NewAuthService(logger, uow, userRepo, auditRepo, sessions, jwtManager, cfg.PhoneAuth.DefaultCountry)
	defer svc.Close()

	mux := http.NewServeMux()
	handler.NewAuthHTTPHandler(svc, logger, jwtManager, issueTokens, cfg.PhoneAuth.CallTimeout).RegisterRoutes(mux)

	srv := server.New(ctx, server.Options{
		Service:       "auth-service",
		Port:          cfg.Services.AuthServicePort,
		MaxConcurrent: maxConcurrent,
		WriteTimeout:  cfg.PhoneAuth.WriteTimeout(),
	}, mux)

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Auth Service started on port %d", cfg.Services.AuthServicePort),
		map[string]any{"port": cfg.Services.AuthServicePort, "max_concurrent": maxConcurrent, "issue_tokens": issueTokens},
	)

	return server.Serve(ctx, logger, srv)
}
