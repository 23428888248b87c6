package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/paperline-erp/paperline-erp/internal/transfer"
)

// StalePendingScanJob reports transfers stuck in pending. It never mutates
// them; approval chains have no timeout and only a human decision moves a
// pending transfer forward.
type StalePendingScanJob struct {
	Transfers *transfer.Service
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewStalePendingScanJob initialises the scan handler.
func NewStalePendingScanJob(transfers *transfer.Service, logger *slog.Logger) *StalePendingScanJob {
	return &StalePendingScanJob{
		Transfers: transfers,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *StalePendingScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Transfers == nil {
		return errors.New("stale pending scan: handler not configured")
	}
	var payload StalePendingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 72
	}
	if payload.Limit <= 0 {
		payload.Limit = 200
	}
	cutoff := j.clock().Add(-time.Duration(payload.WindowHours) * time.Hour)
	stale, err := j.Transfers.ListStalePending(ctx, cutoff, payload.Limit)
	if err != nil {
		return err
	}
	for _, tr := range stale {
		j.Logger.Warn("transfer pending beyond window",
			slog.Int64("transfer_id", tr.ID),
			slog.Int64("order_id", tr.OrderID),
			slog.Float64("weight_kg", tr.WeightKg),
			slog.Time("created_at", tr.CreatedAt),
			slog.Int("window_hours", payload.WindowHours))
	}
	if len(stale) > 0 {
		j.Logger.Info("stale pending scan finished", slog.Int("flagged", len(stale)))
	}
	return nil
}
