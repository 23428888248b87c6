package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository reads audit_logs from PostgreSQL.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs SQLRepository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

const timelineSelect = `SELECT id, occurred_at, actor_id, event_type, entity, entity_id,
COALESCE(old_values,'{}'::jsonb), COALESCE(new_values,'{}'::jsonb), COALESCE(meta,'{}'::jsonb)
FROM audit_logs`

func buildWhere(filters TimelineFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if filters.ActorID != 0 {
		add("actor_id = $%d", filters.ActorID)
	}
	if filters.Entity != "" {
		add("entity = $%d", filters.Entity)
	}
	if filters.EntityID != "" {
		add("entity_id = $%d", filters.EntityID)
	}
	if filters.EventType != "" {
		add("event_type = $%d", filters.EventType)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *SQLRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf("%s%s ORDER BY occurred_at DESC, id DESC OFFSET $%d LIMIT $%d",
		timelineSelect, where, len(args)+1, len(args)+2)
	args = append(args, offset, limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func (r *SQLRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := buildWhere(filters)
	query := timelineSelect + where + " ORDER BY occurred_at DESC, id DESC"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func collectRows(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var result []TimelineRow
	for rows.Next() {
		var (
			row                 TimelineRow
			oldRaw, newRaw, met []byte
		)
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.EventType, &row.Entity, &row.EntityID, &oldRaw, &newRaw, &met); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(oldRaw, &row.OldValues); err != nil {
			return nil, fmt.Errorf("audit: decode old_values: %w", err)
		}
		if err := json.Unmarshal(newRaw, &row.NewValues); err != nil {
			return nil, fmt.Errorf("audit: decode new_values: %w", err)
		}
		if err := json.Unmarshal(met, &row.Meta); err != nil {
			return nil, fmt.Errorf("audit: decode meta: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
