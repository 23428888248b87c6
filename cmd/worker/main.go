package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/paperline-erp/paperline-erp/internal/app"
	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/transfer"
	"github.com/paperline-erp/paperline-erp/internal/warehouse"
	"github.com/paperline-erp/paperline-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditWriter := shared.NewAuditWriter(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(warehouseRepo, auditWriter)

	availabilityCache := stock.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)
	stockRepo := stock.NewRepository(pool, auditWriter)
	ledger := stock.NewLedger(stockRepo, logger, availabilityCache, nil)

	ordersRepo := orders.NewRepository(pool, auditWriter)
	ordersService := orders.NewService(ordersRepo)

	transferRepo := transfer.NewRepository(pool, stockRepo, auditWriter)
	// The worker only reads pending transfers; approvals and execution happen
	// in the API process.
	transferService := transfer.NewService(transferRepo, ledger, nil, warehouseService, idempotencyStore, nil,
		transfer.NewOrdersIntegration(ordersService), nil, logger)

	staleScanJob := jobs.NewStalePendingScanJob(transferService, logger)
	warmupJob := jobs.NewSnapshotWarmupJob(ledger, availabilityCache, warehouseService, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger)

	staleTask, err := jobs.NewStalePendingScanTask(jobs.StalePendingPayload{
		WindowHours: int(cfg.StalePendingWindow.Hours()),
	})
	if err != nil {
		logger.Error("build stale scan task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewSnapshotWarmupTask(jobs.SnapshotWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{
		RetentionHours: int(cfg.IdempotencyRetention.Hours()),
	})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStalePendingScan, Handler: staleScanJob.Handle},
			{Type: jobs.TaskSnapshotWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: staleTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
