package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paperline-erp/paperline-erp/internal/platform/httpx"
)

// Handler wires read-only HTTP endpoints over the audit trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs an audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/timeline", h.handleTimeline)
	r.Get("/timeline/export", h.handleExport)
	r.Get("/entity/{entity}/{entityID}", h.handleEntityHistory)
}

func parseFilters(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	filters := TimelineFilters{
		Entity:    q.Get("entity"),
		EntityID:  q.Get("entity_id"),
		EventType: q.Get("event_type"),
	}
	if v := q.Get("actor_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.ActorID = id
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	if v := q.Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil {
			filters.Page = page
		}
	}
	if v := q.Get("page_size"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			filters.PageSize = size
		}
	}
	return filters
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Timeline(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("audit timeline query", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rows":   rowsResponse(result.Rows),
		"paging": result.Paging,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportTimeline(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("audit timeline export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	entityID := chi.URLParam(r, "entityID")
	rows, err := h.service.EntityHistory(r.Context(), entity, entityID)
	if err != nil {
		h.logger.Error("audit entity history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, rowsResponse(rows))
}

func rowsResponse(rows []TimelineRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"id":         row.ID,
			"at":         row.At,
			"actor_id":   row.ActorID,
			"event_type": row.EventType,
			"entity":     row.Entity,
			"entity_id":  row.EntityID,
			"old_values": row.OldValues,
			"new_values": row.NewValues,
			"meta":       row.Meta,
		})
	}
	return out
}
