package stock

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

// Handler wires HTTP endpoints for the stock ledger. Cross-warehouse moves go
// through the transfer module; these endpoints cover intake, reservation and
// reads.
type Handler struct {
	logger    *slog.Logger
	ledger    *Ledger
	validator *validator.Validate
}

// NewHandler constructs a stock handler.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouse/{warehouseID}", h.handleListByWarehouse)
	r.Get("/availability", h.handleAvailability)
	r.Post("/intake", h.handleIntake)
	r.Post("/reserve", h.handleReserve)
	r.Post("/release", h.handleRelease)
}

type mutationRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	QtyKg       float64 `json:"qty_kg" validate:"required,gt=0"`
	RefModule   string  `json:"ref_module"`
	RefID       string  `json:"ref_id"`
	Note        string  `json:"note"`
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, apply func(shared.Actor, MovementRequest) (Stock, error)) {
	var req mutationRequest
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
	result, err := apply(actor, MovementRequest{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		QtyKg:       req.QtyKg,
		RefModule:   req.RefModule,
		RefID:       req.RefID,
		Note:        req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse(result))
}

func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor shared.Actor, req MovementRequest) (Stock, error) {
		return h.ledger.Credit(r.Context(), actor, req)
	})
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor shared.Actor, req MovementRequest) (Stock, error) {
		return h.ledger.Reserve(r.Context(), actor, req)
	})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor shared.Actor, req MovementRequest) (Stock, error) {
		return h.ledger.Release(r.Context(), actor, req)
	})
}

func (h *Handler) handleListByWarehouse(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "warehouse id must be numeric")
		return
	}
	stocks, err := h.ledger.ListByWarehouse(r.Context(), warehouseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, stockResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err1 := strconv.ParseInt(q.Get("product_id"), 10, 64)
	warehouseID, err2 := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id and warehouse_id are required")
		return
	}
	available, err := h.ledger.Available(r.Context(), productID, warehouseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"available_kg": available,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrDataIntegrity):
		h.logger.Error("data integrity failure", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Data Integrity", "stock invariant violated, operation aborted")
	default:
		h.logger.Error("stock handler error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func stockResponse(s Stock) map[string]any {
	return map[string]any{
		"product_id":   s.ProductID,
		"warehouse_id": s.WarehouseID,
		"quantity_kg":  s.QuantityKg,
		"reserved_kg":  s.ReservedKg,
		"available_kg": s.AvailableKg(),
		"updated_at":   s.UpdatedAt,
	}
}
