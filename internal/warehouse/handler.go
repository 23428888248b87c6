package warehouse

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

// Handler wires HTTP endpoints for the warehouse module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a warehouse handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}/roles", h.handleAssignRoles)
	r.Put("/{id}/accepts-transfers", h.handleSetAcceptsTransfers)
}

type createRequest struct {
	Code             string   `json:"code" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	Kind             string   `json:"kind" validate:"required"`
	Roles            []string `json:"roles"`
	TotalCapacityKg  float64  `json:"total_capacity_kg" validate:"gte=0"`
	AcceptsTransfers bool     `json:"accepts_transfers"`
	RequiresApproval bool     `json:"requires_approval"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
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
	roles := make([]Role, 0, len(req.Roles))
	for _, role := range req.Roles {
		roles = append(roles, Role(role))
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		Code:             req.Code,
		Name:             req.Name,
		Kind:             Kind(req.Kind),
		Roles:            roles,
		TotalCapacityKg:  req.TotalCapacityKg,
		AcceptsTransfers: req.AcceptsTransfers,
		RequiresApproval: req.RequiresApproval,
		ActorID:          actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouseResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(warehouses))
	for _, wh := range warehouses {
		out = append(out, warehouseResponse(wh))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "warehouse id must be numeric")
		return
	}
	wh, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouseResponse(wh))
}

type assignRolesRequest struct {
	Roles []string `json:"roles" validate:"required"`
}

func (h *Handler) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "warehouse id must be numeric")
		return
	}
	var req assignRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	roles := make([]Role, 0, len(req.Roles))
	for _, role := range req.Roles {
		roles = append(roles, Role(role))
	}
	if err := h.service.AssignRoles(r.Context(), actor, id, roles); err != nil {
		h.respondError(w, err)
		return
	}
	wh, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouseResponse(wh))
}

type acceptsTransfersRequest struct {
	AcceptsTransfers bool `json:"accepts_transfers"`
}

func (h *Handler) handleSetAcceptsTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "warehouse id must be numeric")
		return
	}
	var req acceptsTransfersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	if err := h.service.SetAcceptsTransfers(r.Context(), actor, id, req.AcceptsTransfers); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownKind):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("warehouse handler error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func warehouseResponse(wh Warehouse) map[string]any {
	roles := make([]string, 0, len(wh.Roles))
	for _, role := range wh.Roles {
		roles = append(roles, string(role))
	}
	return map[string]any{
		"id":                 wh.ID,
		"code":               wh.Code,
		"name":               wh.Name,
		"kind":               string(wh.Kind),
		"roles":              roles,
		"total_capacity_kg":  wh.TotalCapacityKg,
		"used_capacity_kg":   wh.UsedCapacityKg,
		"accepts_transfers":  wh.AcceptsTransfers,
		"requires_approval":  wh.RequiresApproval,
	}
}
