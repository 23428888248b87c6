package transfer

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/platform/httpx"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
)

// Handler wires HTTP endpoints for the transfer module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a transfer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/approvals", h.handleListApprovals)
	r.Post("/{id}/approvals", h.handleRequestApprovals)
	r.Post("/{id}/approvals/{approvalID}/approve", h.handleApprove)
	r.Post("/{id}/approvals/{approvalID}/reject", h.handleReject)
	r.Post("/{id}/reject", h.handleRejectTransfer)
	r.Post("/{id}/execute", h.handleExecute)
	r.Get("/group/{groupID}", h.handleListByGroup)
}

type createRequest struct {
	OrderID         int64   `json:"order_id" validate:"required"`
	OrderMaterialID int64   `json:"order_material_id"`
	ProductID       int64   `json:"product_id" validate:"required"`
	FromStage       string  `json:"from_stage" validate:"required"`
	ToStage         string  `json:"to_stage" validate:"required"`
	WeightKg        float64 `json:"weight_kg" validate:"required,gt=0"`
	Type            string  `json:"type" validate:"required"`
	Category        string  `json:"category" validate:"required"`
	SourceWarehouse int64   `json:"source_warehouse_id" validate:"required"`
	DestWarehouse   int64   `json:"dest_warehouse_id" validate:"required"`
	Note            string  `json:"note"`
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
	created, err := h.service.Create(r.Context(), actor, CreateInput{
		OrderID:         req.OrderID,
		OrderMaterialID: req.OrderMaterialID,
		ProductID:       req.ProductID,
		FromStage:       orders.Stage(req.FromStage),
		ToStage:         orders.Stage(req.ToStage),
		WeightKg:        req.WeightKg,
		Type:            Type(req.Type),
		Category:        Category(req.Category),
		SourceWarehouse: req.SourceWarehouse,
		DestWarehouse:   req.DestWarehouse,
		Note:            req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transferResponse(created))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transfer id must be numeric")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transferResponse(t))
}

type chainGateRequest struct {
	ApproverID  int64 `json:"approver_id"`
	WarehouseID int64 `json:"warehouse_id" validate:"required"`
	Level       int   `json:"level" validate:"gte=0"`
}

type requestApprovalsRequest struct {
	Gates []chainGateRequest `json:"gates" validate:"required,min=1,dive"`
}

func (h *Handler) handleRequestApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transfer id must be numeric")
		return
	}
	var req requestApprovalsRequest
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
	gates := make([]ChainGateInput, 0, len(req.Gates))
	for _, g := range req.Gates {
		gates = append(gates, ChainGateInput{ApproverID: g.ApproverID, WarehouseID: g.WarehouseID, Level: g.Level})
	}
	approvals, err := h.service.RequestApprovals(r.Context(), actor, id, gates)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, approvalsResponse(approvals))
}

type decisionRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	transferID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transfer id must be numeric")
		return
	}
	approvalID, err := pathID(r, "approvalID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "approval id must be numeric")
		return
	}
	var req decisionRequest
	_ = httpx.DecodeJSON(r, &req)
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	if approve {
		err = h.service.Approve(r.Context(), actor, transferID, approvalID, req.Note)
	} else {
		err = h.service.Reject(r.Context(), actor, transferID, approvalID, req.Note)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transferResponse(t))
}

func (h *Handler) handleRejectTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transfer id must be numeric")
		return
	}
	var req decisionRequest
	_ = httpx.DecodeJSON(r, &req)
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	if err := h.service.Reject(r.Context(), actor, transferID, 0, req.Note); err != nil {
		h.respondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transferResponse(t))
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transfer id must be numeric")
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor identity required")
		return
	}
	result, err := h.service.Execute(r.Context(), actor, transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"transfer":            transferResponse(result.Transfer),
		"source_available_kg": result.SourceStock.AvailableKg(),
		"dest_available_kg":   result.DestStock.AvailableKg(),
	})
}

func (h *Handler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transfer id must be numeric")
		return
	}
	approvals, err := h.service.ListApprovals(r.Context(), transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, approvalsResponse(approvals))
}

func (h *Handler) handleListByGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Group", "group id must be a UUID")
		return
	}
	transfers, err := h.service.ListByGroup(r.Context(), groupID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, transferResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrWrongSequence):
		httpx.Problem(w, http.StatusConflict, "Out Of Sequence", err.Error())
	case errors.Is(err, ErrNotAuthorized):
		httpx.Problem(w, http.StatusForbidden, "Not Authorized", err.Error())
	case errors.Is(err, ErrDestinationClosed):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Destination Closed", err.Error())
	case errors.Is(err, stock.ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, stock.ErrDataIntegrity):
		h.logger.Error("data integrity failure", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Data Integrity", "stock invariant violated, operation aborted")
	default:
		h.logger.Error("transfer handler error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func transferResponse(t WeightTransfer) map[string]any {
	resp := map[string]any{
		"id":                  t.ID,
		"order_id":            t.OrderID,
		"order_material_id":   t.OrderMaterialID,
		"product_id":          t.ProductID,
		"from_stage":          string(t.FromStage),
		"to_stage":            string(t.ToStage),
		"weight_kg":           t.WeightKg,
		"type":                string(t.Type),
		"category":            string(t.Category),
		"source_warehouse_id": t.SourceWarehouse,
		"dest_warehouse_id":   t.DestWarehouse,
		"group_id":            t.GroupID.String(),
		"status":              string(t.Status),
		"requested_by":        t.RequestedBy,
		"created_at":          t.CreatedAt,
	}
	if t.ApprovedBy != 0 {
		resp["approved_by"] = t.ApprovedBy
	}
	if !t.TransferredAt.IsZero() {
		resp["transferred_at"] = t.TransferredAt
	}
	return resp
}

func approvalsResponse(approvals []Approval) []map[string]any {
	out := make([]map[string]any, 0, len(approvals))
	for _, a := range approvals {
		item := map[string]any{
			"id":           a.ID,
			"transfer_id":  a.TransferID,
			"approver_id":  a.ApproverID,
			"warehouse_id": a.WarehouseID,
			"level":        a.Level,
			"sequence":     a.Sequence,
			"is_final":     a.IsFinal,
			"status":       string(a.Status),
			"note":         a.Note,
		}
		if a.DecidedBy != 0 {
			item["decided_by"] = a.DecidedBy
			item["decided_at"] = a.DecidedAt
		}
		out = append(out, item)
	}
	return out
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
