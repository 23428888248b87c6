package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows []TimelineRow
}

// newestFirst applies the filters the way the SQL repository orders results.
func (r *memoryRepo) newestFirst(filters TimelineFilters) []TimelineRow {
	var result []TimelineRow
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if filters.Entity != "" && row.Entity != filters.Entity {
			continue
		}
		if filters.EntityID != "" && row.EntityID != filters.EntityID {
			continue
		}
		if filters.EventType != "" && row.EventType != filters.EventType {
			continue
		}
		if filters.ActorID != 0 && row.ActorID != filters.ActorID {
			continue
		}
		result = append(result, row)
	}
	return result
}

func (r *memoryRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows := r.newestFirst(filters)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *memoryRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return r.newestFirst(filters), nil
}

func seededRepo(n int) *memoryRepo {
	repo := &memoryRepo{}
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		repo.rows = append(repo.rows, TimelineRow{
			ID:        int64(i + 1),
			At:        base.Add(time.Duration(i) * time.Minute),
			ActorID:   int64(i%3 + 1),
			EventType: "transfer.executed",
			Entity:    "weight_transfer",
			EntityID:  fmt.Sprintf("%d", i+1),
			NewValues: map[string]any{"status": "COMPLETED"},
		})
	}
	return repo
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(seededRepo(45))
	ctx := context.Background()

	first, err := svc.Timeline(ctx, TimelineFilters{PageSize: 20})
	require.NoError(t, err)
	require.Len(t, first.Rows, 20)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 1, first.Paging.Page)
	require.Zero(t, first.Paging.PrevPage)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Equal(t, int64(45), first.Rows[0].ID, "newest entry first")

	last, err := svc.Timeline(ctx, TimelineFilters{Page: 3, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, last.Rows, 5)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	svc := NewService(seededRepo(150))

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 100)
}

func TestEntityHistoryReadsForward(t *testing.T) {
	repo := &memoryRepo{}
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, event := range []string{"transfer.created", "transfer.approved", "transfer.executed"} {
		repo.rows = append(repo.rows, TimelineRow{
			ID:        int64(i + 1),
			At:        base.Add(time.Duration(i) * time.Hour),
			EventType: event,
			Entity:    "weight_transfer",
			EntityID:  "7",
		})
	}
	svc := NewService(repo)

	history, err := svc.EntityHistory(context.Background(), "weight_transfer", "7")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "transfer.created", history[0].EventType)
	require.Equal(t, "transfer.executed", history[2].EventType)

	_, err = svc.EntityHistory(context.Background(), "", "7")
	require.Error(t, err)
}

func TestExportTimelineCSV(t *testing.T) {
	repo := seededRepo(2)
	svc := NewService(repo)

	data, err := svc.ExportTimeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "header plus one line per row")
	require.Contains(t, lines[0], "event_type")
	require.Contains(t, lines[1], "transfer.executed")
	require.Contains(t, lines[1], `{""status"":""COMPLETED""}`)
}
