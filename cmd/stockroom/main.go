package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom-hq/stockroom/internal/app"
	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/inventory"
	"github.com/stockroom-hq/stockroom/internal/notification"
	"github.com/stockroom-hq/stockroom/internal/observability"
	"github.com/stockroom-hq/stockroom/internal/platform/cache"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/purchaseorder"
	"github.com/stockroom-hq/stockroom/internal/supplier"
	"github.com/stockroom-hq/stockroom/internal/users"
	"github.com/stockroom-hq/stockroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg, logger, os.Args[2:]))
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, unread counts uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)

	unreadCache := notification.NewUnreadCache(redisClient, 5*time.Minute)
	notificationRepo := notification.NewRepository(pool)
	notificationService := notification.NewService(notificationRepo, usersService, unreadCache, logger)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, notificationService)

	orderRepo := purchaseorder.NewRepository(pool)
	orderService := purchaseorder.NewService(orderRepo, inventoryService, notificationService)

	supplierRepo := supplier.NewRepository(pool)
	supplierService := supplier.NewService(supplierRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	manage := app.RequireInventoryManager

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Users:                usersService,
		InventoryHandler:     inventory.NewHandler(logger, inventoryService, manage),
		PurchaseOrderHandler: purchaseorder.NewHandler(logger, orderService, manage),
		SupplierHandler:      supplier.NewHandler(logger, supplierService, manage),
		AuditHandler:         audit.NewHandler(logger, auditService),
		NotificationHandler:  notification.NewHandler(logger, notificationService),
		JobsHandler:          jobs.NewHandler(inspector, logger),
		Metrics:              observability.NewMetrics(),
		Pool:                 pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
