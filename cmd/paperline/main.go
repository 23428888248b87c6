package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/paperline-erp/paperline-erp/internal/app"
	"github.com/paperline-erp/paperline-erp/internal/audit"
	"github.com/paperline-erp/paperline-erp/internal/catalog"
	"github.com/paperline-erp/paperline-erp/internal/identity"
	"github.com/paperline-erp/paperline-erp/internal/observability"
	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/processing"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/transfer"
	"github.com/paperline-erp/paperline-erp/internal/warehouse"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditWriter := shared.NewAuditWriter(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	warehouseRepo := warehouse.NewRepository(dbpool)
	warehouseService := warehouse.NewService(warehouseRepo, auditWriter)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditWriter)

	availabilityCache := stock.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)
	stockRepo := stock.NewRepository(dbpool, auditWriter)
	ledger := stock.NewLedger(stockRepo, logger, availabilityCache, metrics)

	ordersRepo := orders.NewRepository(dbpool, auditWriter)
	ordersService := orders.NewService(ordersRepo)

	identityRepo := identity.NewRepository(dbpool)
	identityService := identity.NewService(identityRepo)

	transferRepo := transfer.NewRepository(dbpool, stockRepo, auditWriter)
	transferService := transfer.NewService(
		transferRepo,
		ledger,
		identityService,
		warehouseService,
		idempotencyStore,
		metrics,
		transfer.NewOrdersIntegration(ordersService),
		catalogService,
		logger,
	)

	processingService := processing.NewService(ordersService, transferService, idempotencyStore, metrics, logger)

	auditRepo := audit.NewSQLRepository(dbpool)
	auditService := audit.NewService(auditRepo)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              dbpool,
		Metrics:           metrics,
		WarehouseHandler:  warehouse.NewHandler(logger, warehouseService),
		CatalogHandler:    catalog.NewHandler(logger, catalogService),
		StockHandler:      stock.NewHandler(logger, ledger),
		OrdersHandler:     orders.NewHandler(logger, ordersService),
		TransferHandler:   transfer.NewHandler(logger, transferService),
		ProcessingHandler: processing.NewHandler(logger, processingService),
		AuditHandler:      audit.NewHandler(logger, auditService),
		IdentityHandler:   identity.NewHandler(logger, identityService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
