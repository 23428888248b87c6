package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry represents one row of the append-only audit_logs table. Entries
// are never updated or deleted once written.
type AuditEntry struct {
	ActorID   int64
	EventType string
	Entity    string
	EntityID  string
	OldValues map[string]any
	NewValues map[string]any
	Meta      map[string]any
	At        time.Time
}

// AuditWriter persists audit entries. A stock mutation and its audit entry
// must commit in the same transaction, so the writer exposes both a pool
// variant and a tx-scoped variant.
type AuditWriter struct {
	pool *pgxpool.Pool
}

// NewAuditWriter returns a new AuditWriter.
func NewAuditWriter(pool *pgxpool.Pool) *AuditWriter {
	return &AuditWriter{pool: pool}
}

const insertAuditSQL = `INSERT INTO audit_logs (actor_id, event_type, entity, entity_id, old_values, new_values, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`

// Record persists the entry outside any caller transaction.
func (w *AuditWriter) Record(ctx context.Context, entry AuditEntry) error {
	if w == nil {
		return errors.New("audit writer not initialised")
	}
	args, err := auditArgs(entry)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx, insertAuditSQL, args...)
	return err
}

// RecordTx persists the entry inside the caller's transaction so the entry
// commits or rolls back with the mutation it documents.
func (w *AuditWriter) RecordTx(ctx context.Context, tx pgx.Tx, entry AuditEntry) error {
	args, err := auditArgs(entry)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertAuditSQL, args...)
	return err
}

func auditArgs(entry AuditEntry) ([]any, error) {
	if entry.EventType == "" || entry.Entity == "" || entry.EntityID == "" {
		return nil, errors.New("audit entry requires event_type/entity/entity_id")
	}
	oldJSON, err := json.Marshal(entry.OldValues)
	if err != nil {
		return nil, err
	}
	newJSON, err := json.Marshal(entry.NewValues)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return nil, err
	}
	var at any
	if !entry.At.IsZero() {
		at = entry.At
	}
	return []any{entry.ActorID, entry.EventType, entry.Entity, entry.EntityID, oldJSON, newJSON, metaJSON, at}, nil
}
