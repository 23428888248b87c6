package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Repository provides read access to the audit trail.
type Repository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Service coordinates audit trail reads.
type Service struct {
	repo Repository
}

// NewService builds the audit reader.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the audit trail, newest first. One extra row
// is fetched to detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// EntityHistory returns the full ordered trail of one entity, oldest first,
// so a material's weight can be traced step by step.
func (s *Service) EntityHistory(ctx context.Context, entity, entityID string) ([]TimelineRow, error) {
	if entity == "" || entityID == "" {
		return nil, fmt.Errorf("audit: entity and entity id are required")
	}
	rows, err := s.repo.TimelineAll(ctx, TimelineFilters{Entity: entity, EntityID: entityID})
	if err != nil {
		return nil, err
	}
	// TimelineAll returns newest first; history reads forward.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ExportTimeline renders the filtered trail as CSV for offline review.
func (s *Service) ExportTimeline(ctx context.Context, filters TimelineFilters) ([]byte, error) {
	rows, err := s.repo.TimelineAll(ctx, filters)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor_id", "event_type", "entity", "entity_id", "old_values", "new_values", "meta"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.At.Format(time.RFC3339),
			strconv.FormatInt(row.ActorID, 10),
			row.EventType,
			row.Entity,
			row.EntityID,
			compactJSON(row.OldValues),
			compactJSON(row.NewValues),
			compactJSON(row.Meta),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compactJSON(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(raw)
}
