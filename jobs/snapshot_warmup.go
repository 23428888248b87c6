package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/warehouse"
)

// SnapshotWarmupJob refills the availability cache from the ledger so reads
// after a cold start or flush do not stampede the database.
type SnapshotWarmupJob struct {
	Ledger     *stock.Ledger
	Cache      *stock.AvailabilityCache
	Warehouses *warehouse.Service
	Logger     *slog.Logger
}

// NewSnapshotWarmupJob initialises the warmup handler.
func NewSnapshotWarmupJob(ledger *stock.Ledger, cache *stock.AvailabilityCache, warehouses *warehouse.Service, logger *slog.Logger) *SnapshotWarmupJob {
	return &SnapshotWarmupJob{Ledger: ledger, Cache: cache, Warehouses: warehouses, Logger: logger}
}

// Handle executes the warmup, fanning out per warehouse.
func (j *SnapshotWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil || j.Cache == nil {
		return errors.New("snapshot warmup: handler not configured")
	}
	var payload SnapshotWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	ids := payload.WarehouseIDs
	if len(ids) == 0 {
		all, err := j.Warehouses.List(ctx)
		if err != nil {
			return err
		}
		for _, wh := range all {
			ids = append(ids, wh.ID)
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range ids {
		warehouseID := id
		g.Go(func() error {
			stocks, err := j.Ledger.ListByWarehouse(ctx, warehouseID)
			if err != nil {
				return err
			}
			for _, s := range stocks {
				if err := j.Cache.Set(ctx, s.ProductID, warehouseID, s.AvailableKg()); err != nil {
					return err
				}
			}
			j.Logger.Debug("availability snapshot warmed",
				slog.Int64("warehouse_id", warehouseID),
				slog.Int("entries", len(stocks)))
			return nil
		})
	}
	return g.Wait()
}
