package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/paperline-erp/paperline-erp/internal/platform/httpx"
	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Post("/{id}/freeze", h.handleFreeze)
}

type specRequest struct {
	Code         string  `json:"code" validate:"required"`
	Type         string  `json:"type" validate:"required"`
	WidthCm      float64 `json:"width_cm" validate:"gte=0"`
	GrammageGsm  float64 `json:"grammage_gsm" validate:"gte=0"`
	QualityGrade string  `json:"quality_grade"`
	RollNumber   string  `json:"roll_number"`
	UnitCost     float64 `json:"unit_cost" validate:"gte=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req specRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		Code:         req.Code,
		Type:         MaterialType(req.Type),
		WidthCm:      req.WidthCm,
		GrammageGsm:  req.GrammageGsm,
		QualityGrade: req.QualityGrade,
		RollNumber:   req.RollNumber,
		UnitCost:     req.UnitCost,
		ActorID:      actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, specResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	specs, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pg := shared.NewPagination(page, perPage, len(specs))

	start := (pg.Page - 1) * pg.PerPage
	if start > len(specs) {
		start = len(specs)
	}
	end := start + pg.PerPage
	if end > len(specs) {
		end = len(specs)
	}

	out := make([]map[string]any, 0, end-start)
	for _, spec := range specs[start:end] {
		out = append(out, specResponse(spec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"specs": out,
		"pagination": map[string]any{
			"page":        pg.Page,
			"per_page":    pg.PerPage,
			"total":       pg.Total,
			"total_pages": pg.TotalPages,
		},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "spec id must be numeric")
		return
	}
	spec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, specResponse(spec))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "spec id must be numeric")
		return
	}
	var req specRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	updated, err := h.service.Update(r.Context(), UpdateInput{
		ID:           id,
		WidthCm:      req.WidthCm,
		GrammageGsm:  req.GrammageGsm,
		QualityGrade: req.QualityGrade,
		UnitCost:     req.UnitCost,
		ActorID:      actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, specResponse(updated))
}

func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "spec id must be numeric")
		return
	}
	if _, ok := shared.ActorFromContext(r.Context()); !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	if err := h.service.Freeze(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"frozen": true})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrSpecFrozen):
		httpx.Problem(w, http.StatusConflict, "Spec Frozen", err.Error())
	default:
		h.logger.Error("catalog handler error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func specResponse(spec Spec) map[string]any {
	return map[string]any{
		"id":            spec.ID,
		"code":          spec.Code,
		"type":          string(spec.Type),
		"width_cm":      spec.WidthCm,
		"grammage_gsm":  spec.GrammageGsm,
		"quality_grade": spec.QualityGrade,
		"roll_number":   spec.RollNumber,
		"unit_cost":     spec.UnitCost,
		"frozen":        spec.Frozen,
	}
}
