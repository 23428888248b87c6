package orders

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

// Handler wires HTTP endpoints for the orders module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs an orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/materials", h.handleAddMaterial)
	r.Get("/{id}/materials", h.handleListMaterials)
	r.Post("/{id}/advance", h.handleAdvanceStage)
}

type createRequest struct {
	OrderNumber      string  `json:"order_number"`
	CustomerName     string  `json:"customer_name" validate:"required"`
	RequiredWeightKg float64 `json:"required_weight_kg" validate:"gte=0"`
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
	order, err := h.service.Create(r.Context(), actor, CreateInput{
		OrderNumber:      req.OrderNumber,
		CustomerName:     req.CustomerName,
		RequiredWeightKg: req.RequiredWeightKg,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderResponse(order))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse(order))
}

type addMaterialRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	RequestedKg float64 `json:"requested_kg" validate:"required,gt=0"`
}

func (h *Handler) handleAddMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	var req addMaterialRequest
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
	material, err := h.service.AddMaterial(r.Context(), actor, id, req.ProductID, req.RequestedKg)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, materialResponse(material))
}

func (h *Handler) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	materials, err := h.service.ListMaterials(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(materials))
	for _, m := range materials {
		out = append(out, materialResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type advanceRequest struct {
	To string `json:"to" validate:"required"`
}

func (h *Handler) handleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	var req advanceRequest
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
	order, err := h.service.AdvanceStage(r.Context(), actor, id, Stage(req.To))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse(order))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrStageOrder):
		httpx.Problem(w, http.StatusConflict, "Illegal Stage Transition", err.Error())
	case errors.Is(err, ErrWeightConservation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Weight Conservation", err.Error())
	default:
		h.logger.Error("orders handler error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func orderResponse(order Order) map[string]any {
	return map[string]any{
		"id":                 order.ID,
		"order_number":       order.OrderNumber,
		"customer_name":      order.CustomerName,
		"current_stage":      string(order.CurrentStage),
		"required_weight_kg": order.RequiredWeightKg,
		"status":             string(order.Status),
		"created_by":         order.CreatedBy,
		"created_at":         order.CreatedAt,
	}
}

func materialResponse(m OrderMaterial) map[string]any {
	return map[string]any{
		"id":               m.ID,
		"order_id":         m.OrderID,
		"product_id":       m.ProductID,
		"requested_kg":     m.RequestedKg,
		"extracted_kg":     m.ExtractedKg,
		"sorted_kg":        m.SortedKg,
		"cut_kg":           m.CutKg,
		"delivered_kg":     m.DeliveredKg,
		"returned_kg":      m.ReturnedKg,
		"sorting_waste_kg": m.SortingWasteKg,
		"cutting_waste_kg": m.CuttingWasteKg,
		"remaining_kg":     m.RemainingKg,
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
