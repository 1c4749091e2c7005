package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/brymix/dashboard-bff/internal/api/http"
	"github.com/brymix/dashboard-bff/internal/api/http/handlers"
	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/config"
	"github.com/brymix/dashboard-bff/internal/events"
	"github.com/brymix/dashboard-bff/internal/observability"
	"github.com/brymix/dashboard-bff/internal/persistence"
	"github.com/brymix/dashboard-bff/internal/ratelimit"
	"github.com/brymix/dashboard-bff/internal/repository"
	"github.com/brymix/dashboard-bff/internal/service"
	"github.com/brymix/dashboard-bff/internal/upstream"
	"github.com/brymix/dashboard-bff/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	tokens, err := auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	totpEngine := auth.NewTOTPEngine(auth.TOTPConfig{
		Issuer:     cfg.TwoFactor.Issuer,
		Period:     uint(cfg.TwoFactor.PeriodSeconds),
		Window:     uint(cfg.TwoFactor.Window),
		QRCodeSize: cfg.TwoFactor.QRCodeSize,
	}, time.Now)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	deps := service.AuthDependencies{
		UserRepo:   userRepo,
		Hasher:     auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Tokens:     tokens,
		TOTP:       totpEngine,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	authService := service.NewAuthService(cfg.Auth, deps)
	twoFactorService := service.NewTwoFactorService(cfg.Auth, cfg.TwoFactor, deps)

	upstreamClient := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout())
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, upstreamClient, dispatcher, logger, time.Now)
	dashboardService := service.NewDashboardService(apiKeyRepo, upstreamClient, logger, time.Now, cfg.Upstream.Concurrency)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, logger)

	app := httptransport.NewApp(cfg.App)
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.CORS.Origins,
		UpstreamURL: cfg.Upstream.BaseURL,
	})

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.PasswordMinLength),
		TwoFactor:      handlers.NewTwoFactorHandler(twoFactorService),
		APIKeys:        handlers.NewAPIKeysHandler(apiKeyService),
		Dashboard:      handlers.NewDashboardHandler(dashboardService),
		Admin:          handlers.NewAdminHandler(authService, metrics),
		AuthMiddleware: authMiddleware,
	}
	if cfg.RateLimit.Enabled {
		routes.GlobalLimiter = ratelimit.Local(ratelimit.NewLocalLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))
		routes.AuthLimiter = ratelimit.Shared(
			ratelimit.NewRedisLimiter(redis.Client, redis.Key("ratelimit", "auth"), cfg.RateLimit.AuthMax, cfg.RateLimit.Window),
			logger,
		)
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
