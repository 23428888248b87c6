// Package audit reads the append-only audit trail. Writes happen inside the
// owning modules' transactions via shared.AuditWriter; this package only
// queries and exports.
package audit

import "time"

// TimelineFilters narrows a timeline query. Zero values mean no filter.
type TimelineFilters struct {
	From      time.Time
	To        time.Time
	ActorID   int64
	Entity    string
	EntityID  string
	EventType string
	Page      int
	PageSize  int
}

// TimelineRow is one audit trail entry as returned to readers.
type TimelineRow struct {
	ID        int64
	At        time.Time
	ActorID   int64
	EventType string
	Entity    string
	EntityID  string
	OldValues map[string]any
	NewValues map[string]any
	Meta      map[string]any
}

// PagingInfo carries pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}
