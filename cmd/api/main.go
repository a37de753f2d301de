package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
	"github.com/spec-kit/identity-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	signingKey, err := auth.NewSigningKey()
	if err != nil {
		logger.Fatal("failed to generate signing key", zap.Error(err))
	}
	logger.Info("signing key generated", zap.String("kid", signingKey.KeyID()))

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)

	var redisStore *persistence.Redis
	var refreshRepo repository.RefreshTokenRepository
	if cfg.Redis.Addr != "" {
		redisStore = persistence.NewRedis(cfg.Redis, logger)
		defer redisStore.Close()
		refreshRepo = repository.NewRedisRefreshTokenRepository(redisStore.Client)
	} else {
		logger.Info("REDIS_ADDR not set; refresh tokens held in memory")
		refreshRepo = repository.NewMemoryRefreshTokenRepository()
	}

	tokenIssuer := auth.NewTokenIssuer(signingKey, cfg.Auth.IssuerURL, cfg.Auth.TokenTTLSeconds)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notify)
	worker.StartNotificationWorker(notificationService)

	registrationService := service.NewRegistrationService(userRepo, roleRepo, cfg.Auth.BcryptCost, dispatcher, logger)
	loginService := service.NewLoginService(userRepo, tokenIssuer, dispatcher, logger)
	oauthService, err := service.NewOAuthService(
		cfg.OAuth.ClientID,
		cfg.OAuth.ClientSecret,
		cfg.Auth.BcryptCost,
		userRepo,
		refreshRepo,
		loginService,
		tokenIssuer,
		cfg.Auth.RefreshTokenTTL(),
		logger,
	)
	if err != nil {
		logger.Fatal("failed to init oauth service", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(tokenIssuer, userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisStore),
		Users:          handlers.NewUsersHandler(registrationService, loginService),
		OAuth:          handlers.NewOAuthHandler(oauthService),
		JWKS:           handlers.NewJWKSHandler(signingKey),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
