package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/siladan/servicedesk/internal/api/http"
	"github.com/siladan/servicedesk/internal/api/http/handlers"
	"github.com/siladan/servicedesk/internal/auth"
	"github.com/siladan/servicedesk/internal/config"
	"github.com/siladan/servicedesk/internal/events"
	"github.com/siladan/servicedesk/internal/observability"
	"github.com/siladan/servicedesk/internal/persistence"
	"github.com/siladan/servicedesk/internal/repository"
	"github.com/siladan/servicedesk/internal/service"
	"github.com/siladan/servicedesk/internal/sla"
	"github.com/siladan/servicedesk/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	calendarRepo := repository.NewCalendarRepository(pool)
	policyRepo := repository.NewSLAPolicyRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	permissions := auth.NewPermissionCache(roleRepo, logger)
	if err := permissions.Reload(ctx); err != nil {
		logger.Fatal("failed to load rbac configuration", zap.Error(err))
	}
	go permissions.RunPeriodicRefresh(ctx, cfg.Auth.RBACRefreshInterval())

	resolver := sla.NewCachedResolver(calendarRepo, redis.Client, cfg.SLA.CalendarCacheTTL(), logger)
	calculator := sla.NewCalculator(policyRepo, resolver, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	authService := service.NewAuthService(userRepo, tokens, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CatalogRepo:  catalogRepo,
		ApprovalRepo: approvalRepo,
		ActivityRepo: activityRepo,
		Calculator:   calculator,
		Permissions:  permissions,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		TicketRepo:   ticketRepo,
		ApprovalRepo: approvalRepo,
		ActivityRepo: activityRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	notificationService := service.NewNotificationService(notificationRepo, userRepo, logger)
	notificationService.RegisterHandlers(dispatcher)

	sweeper := worker.NewBreachSweeper(ticketRepo, activityRepo, dispatcher, metrics, logger)
	if err := sweeper.Start(ctx, cfg.SLA.SweepCronSpec); err != nil {
		logger.Fatal("failed to start breach sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, approvalService),
		Admin:          handlers.NewAdminHandler(calendarRepo, policyRepo, catalogRepo, resolver, permissions),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		Permissions:    permissions,
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
