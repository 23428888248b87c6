package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStalePendingScan flags transfers sitting in pending beyond the
	// configured window. Observation only; pending transfers never expire.
	TaskStalePendingScan = "transfer:stale_pending_scan"
	// TaskSnapshotWarmup refreshes cached availability snapshots per warehouse.
	TaskSnapshotWarmup = "stock:snapshot_warmup"
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// StalePendingPayload parameterises the stale pending scan.
type StalePendingPayload struct {
	WindowHours int `json:"window_hours"`
	Limit       int `json:"limit"`
}

// NewStalePendingScanTask constructs the scan task.
func NewStalePendingScanTask(payload StalePendingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStalePendingScan, data), nil
}

// SnapshotWarmupPayload lists the warehouses to warm. Empty means all.
type SnapshotWarmupPayload struct {
	WarehouseIDs []int64 `json:"warehouse_ids"`
}

// NewSnapshotWarmupTask constructs the warmup task.
func NewSnapshotWarmupTask(payload SnapshotWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotWarmup, data), nil
}

// IdempotencyCleanupPayload parameterises key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
