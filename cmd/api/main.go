package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/umkm-portal/internal/api/http"
	"github.com/spec-kit/umkm-portal/internal/api/http/handlers"
	"github.com/spec-kit/umkm-portal/internal/auth"
	"github.com/spec-kit/umkm-portal/internal/config"
	"github.com/spec-kit/umkm-portal/internal/events"
	"github.com/spec-kit/umkm-portal/internal/observability"
	"github.com/spec-kit/umkm-portal/internal/persistence"
	"github.com/spec-kit/umkm-portal/internal/service"
	"github.com/spec-kit/umkm-portal/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, cfg.Audit))

	userRepo := persistence.UserStore(pg)
	revocationRepo := persistence.RevocationStore(redis)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:       userRepo,
		RevocationRepo: revocationRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	if _, err := authService.BootstrapAdmin(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	verifier := authService.TokenManager().Verifier()
	authMiddleware := auth.NewAuthMiddleware(verifier, userRepo, revocationRepo, cfg.Auth.CookieName)
	guard := auth.NewRouteGuard(auth.RouteGuardConfig{
		Verifier:   verifier,
		Policy:     auth.DefaultPolicy(auth.LoginPaths{Admin: cfg.Guard.AdminLoginPath, UMKM: cfg.Guard.UMKMLoginPath}),
		CookieName: cfg.Auth.CookieName,
		Logger:     logger,
		Metrics:    metrics,
	})

	rateLimiter := httptransport.NewRateLimiter(cfg.RateLimit, logger)
	defer rateLimiter.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth: handlers.NewAuthHandler(authService, handlers.CookieOptions{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		}, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Portal:         handlers.NewPortalHandler(cfg.Guard.UpstreamURL, logger),
		AuthMiddleware: authMiddleware,
		Guard:          guard,
		RateLimiter:    rateLimiter,
		Gatherer:       registry,
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
