package processing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/platform/httpx"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/transfer"
)

// Handler wires HTTP endpoints for the processing module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a processing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers processing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sorting", h.handleSorting)
	r.Post("/cutting", h.handleCutting)
}

type outputRequest struct {
	Category  string  `json:"category" validate:"required"`
	WeightKg  float64 `json:"weight_kg" validate:"required,gt=0"`
	DestID    int64   `json:"dest_id" validate:"required"`
	ProductID int64   `json:"product_id"`
}

type sortingRequest struct {
	OrderID          int64           `json:"order_id" validate:"required"`
	OrderMaterialID  int64           `json:"order_material_id" validate:"required"`
	ProductID        int64           `json:"product_id" validate:"required"`
	InputKg          float64         `json:"input_kg" validate:"required,gt=0"`
	SortingWarehouse int64           `json:"sorting_warehouse_id" validate:"required"`
	Outputs          []outputRequest `json:"outputs" validate:"required,min=1,dive"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

func buildOutputs(reqs []outputRequest) []Output {
	outputs := make([]Output, 0, len(reqs))
	for _, o := range reqs {
		outputs = append(outputs, Output{
			Category:  transfer.Category(o.Category),
			WeightKg:  o.WeightKg,
			Dest:      o.DestID,
			ProductID: o.ProductID,
		})
	}
	return outputs
}

func (h *Handler) handleSorting(w http.ResponseWriter, r *http.Request) {
	var req sortingRequest
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
	result, err := h.service.RecordSorting(r.Context(), actor, SortingInput{
		OrderID:          req.OrderID,
		OrderMaterialID:  req.OrderMaterialID,
		ProductID:        req.ProductID,
		InputKg:          req.InputKg,
		SortingWarehouse: req.SortingWarehouse,
		Outputs:          buildOutputs(req.Outputs),
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resultResponse(result))
}

type cuttingRequest struct {
	OrderID          int64           `json:"order_id" validate:"required"`
	OrderMaterialID  int64           `json:"order_material_id" validate:"required"`
	ProductID        int64           `json:"product_id" validate:"required"`
	InputKg          float64         `json:"input_kg" validate:"required,gt=0"`
	CuttingWarehouse int64           `json:"cutting_warehouse_id" validate:"required"`
	Outputs          []outputRequest `json:"outputs" validate:"required,min=1,dive"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

func (h *Handler) handleCutting(w http.ResponseWriter, r *http.Request) {
	var req cuttingRequest
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
	result, err := h.service.RecordCutting(r.Context(), actor, CuttingInput{
		OrderID:          req.OrderID,
		OrderMaterialID:  req.OrderMaterialID,
		ProductID:        req.ProductID,
		InputKg:          req.InputKg,
		CuttingWarehouse: req.CuttingWarehouse,
		Outputs:          buildOutputs(req.Outputs),
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resultResponse(result))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrWeightImbalance):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Weight Imbalance", err.Error())
	case errors.Is(err, orders.ErrWeightConservation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Weight Conservation", err.Error())
	case errors.Is(err, orders.ErrValidation), errors.Is(err, transfer.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, transfer.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Submission", err.Error())
	case errors.Is(err, stock.ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	default:
		h.logger.Error("processing handler error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func resultResponse(result Result) map[string]any {
	ids := make([]int64, 0, len(result.Transfers))
	for _, t := range result.Transfers {
		ids = append(ids, t.ID)
	}
	return map[string]any{
		"group_id":     result.GroupID.String(),
		"transfer_ids": ids,
		"material": map[string]any{
			"id":               result.Material.ID,
			"extracted_kg":     result.Material.ExtractedKg,
			"sorted_kg":        result.Material.SortedKg,
			"cut_kg":           result.Material.CutKg,
			"sorting_waste_kg": result.Material.SortingWasteKg,
			"cutting_waste_kg": result.Material.CuttingWasteKg,
			"remaining_kg":     result.Material.RemainingKg,
		},
	}
}
