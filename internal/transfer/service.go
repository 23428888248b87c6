package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paperline-erp/paperline-erp/internal/catalog"
	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/warehouse"
)

// RepositoryPort abstracts repository usage for the transfer service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransfer(ctx context.Context, id int64) (WeightTransfer, error)
	ListByOrder(ctx context.Context, orderID int64) ([]WeightTransfer, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]WeightTransfer, error)
	ListApprovals(ctx context.Context, transferID int64) ([]Approval, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]WeightTransfer, error)
}

// TxRepository exposes the transactional operations of the transfer engine.
// It embeds the stock transaction surface so a debit, credit, status change
// and every audit entry commit or roll back together.
type TxRepository interface {
	stock.TxRepository
	InsertTransfer(ctx context.Context, t WeightTransfer) (int64, error)
	GetTransferForUpdate(ctx context.Context, id int64) (WeightTransfer, error)
	UpdateTransferStatus(ctx context.Context, id int64, status Status, approvedBy int64, transferredAt time.Time) error
	InsertApproval(ctx context.Context, a Approval) (int64, error)
	ListApprovalsForUpdate(ctx context.Context, transferID int64) ([]Approval, error)
	DecideApproval(ctx context.Context, id int64, status ApprovalStatus, decidedBy int64, note string, at time.Time) error
}

// LedgerPort is the slice of the stock ledger the engine composes into its
// own transactions. *stock.Ledger satisfies it.
type LedgerPort interface {
	Available(ctx context.Context, productID, warehouseID int64) (float64, error)
	DebitTx(ctx context.Context, tx stock.TxRepository, actor shared.Actor, req stock.MovementRequest) (stock.Stock, stock.Stock, error)
	CreditTx(ctx context.Context, tx stock.TxRepository, actor shared.Actor, req stock.MovementRequest) (stock.Stock, stock.Stock, error)
	AfterTxMutation(ctx context.Context, kind stock.MovementKind, after stock.Stock)
}

// IdentityPort answers approval capability questions.
type IdentityPort interface {
	CanApprove(ctx context.Context, userID, warehouseID int64, level int) (bool, error)
}

// WarehousePort resolves warehouse configuration.
type WarehousePort interface {
	Get(ctx context.Context, id int64) (warehouse.Warehouse, error)
}

// IdempotencyPort guards operations against duplicate submission.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort counts transfer outcomes.
type MetricsPort interface {
	TransferExecuted(transferType string)
	TransferRejected()
}

// IntegrationPort receives the executed-transfer event after commit.
type IntegrationPort interface {
	HandleTransferExecuted(ctx context.Context, ev TransferExecutedEvent) error
}

// CatalogPort freezes the material spec of an executed transfer. A spec
// referenced by a completed transfer's audit trail must never change again.
// *catalog.Service satisfies it.
type CatalogPort interface {
	Freeze(ctx context.Context, productID int64) error
}

// Service drives the weight transfer lifecycle: creation, the sequential
// approval chain, and atomic execution against the stock ledger.
type Service struct {
	repo        RepositoryPort
	ledger      LedgerPort
	identity    IdentityPort
	warehouses  WarehousePort
	idempotency IdempotencyPort
	metrics     MetricsPort
	integration IntegrationPort
	catalog     CatalogPort
	logger      *slog.Logger
}

// NewService builds a transfer Service. Idempotency, metrics, integration and
// catalog are optional.
func NewService(
	repo RepositoryPort,
	ledger LedgerPort,
	identity IdentityPort,
	warehouses WarehousePort,
	idempotency IdempotencyPort,
	metrics MetricsPort,
	integration IntegrationPort,
	catalog CatalogPort,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		ledger:      ledger,
		identity:    identity,
		warehouses:  warehouses,
		idempotency: idempotency,
		metrics:     metrics,
		integration: integration,
		catalog:     catalog,
		logger:      logger,
	}
}

// CreateInput describes a requested weight transfer.
type CreateInput struct {
	OrderID         int64
	OrderMaterialID int64
	ProductID       int64
	FromStage       orders.Stage
	ToStage         orders.Stage
	WeightKg        float64
	Type            Type
	Category        Category
	SourceWarehouse int64
	DestWarehouse   int64
	// GroupID links transfers born from one processing step. Zero means the
	// transfer stands alone and receives a fresh group.
	GroupID uuid.UUID
	Note    string
}

func (in CreateInput) validate() error {
	switch {
	case in.WeightKg <= 0:
		return fmt.Errorf("%w: weight must be positive", ErrValidation)
	case in.SourceWarehouse == in.DestWarehouse:
		return fmt.Errorf("%w: source and destination must differ", ErrValidation)
	case !ValidType(in.Type):
		return fmt.Errorf("%w: unknown transfer type %q", ErrValidation, in.Type)
	case !ValidCategory(in.Category):
		return fmt.Errorf("%w: unknown category %q", ErrValidation, in.Category)
	case !orders.ValidStage(in.FromStage) || !orders.ValidStage(in.ToStage):
		return fmt.Errorf("%w: unknown stage", ErrValidation)
	}
	return nil
}

// Create registers a pending transfer after a soft availability check. The
// check is advisory; availability is re-validated under lock at execution.
// Waste routed to a scrap sink skips the approval chain entirely.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (WeightTransfer, error) {
	transfers, err := s.CreateGroup(ctx, actor, []CreateInput{input})
	if err != nil {
		return WeightTransfer{}, err
	}
	return transfers[0], nil
}

// CreateGroup registers a cohort of transfers in one transaction, all sharing
// one group id. Sorting and cutting results use this so a balanced outcome
// never half-materialises.
func (s *Service) CreateGroup(ctx context.Context, actor shared.Actor, inputs []CreateInput) ([]WeightTransfer, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty transfer group", ErrValidation)
	}
	groupID := inputs[0].GroupID
	if groupID == uuid.Nil {
		groupID = uuid.New()
	}
	prepared := make([]WeightTransfer, 0, len(inputs))
	now := time.Now().UTC()
	for _, input := range inputs {
		if err := input.validate(); err != nil {
			return nil, err
		}
		dest, err := s.warehouses.Get(ctx, input.DestWarehouse)
		if err != nil {
			return nil, fmt.Errorf("transfer: resolve destination: %w", err)
		}
		if !dest.AcceptsTransfers {
			return nil, ErrDestinationClosed
		}
		source, err := s.warehouses.Get(ctx, input.SourceWarehouse)
		if err != nil {
			return nil, fmt.Errorf("transfer: resolve source: %w", err)
		}
		available, err := s.ledger.Available(ctx, input.ProductID, input.SourceWarehouse)
		if err != nil {
			return nil, fmt.Errorf("transfer: availability check: %w", err)
		}
		if input.WeightKg > available {
			return nil, fmt.Errorf("%w: requested %.4f kg, %.4f kg available in warehouse %d",
				stock.ErrInsufficientStock, input.WeightKg, available, input.SourceWarehouse)
		}
		t := WeightTransfer{
			OrderID:         input.OrderID,
			OrderMaterialID: input.OrderMaterialID,
			ProductID:       input.ProductID,
			FromStage:       input.FromStage,
			ToStage:         input.ToStage,
			WeightKg:        input.WeightKg,
			Type:            input.Type,
			Category:        input.Category,
			SourceWarehouse: input.SourceWarehouse,
			DestWarehouse:   input.DestWarehouse,
			GroupID:         groupID,
			Status:          StatusPending,
			RequestedBy:     actor.ID,
			CreatedAt:       now,
		}
		if autoApproved(source, dest, input.Category) {
			t.Status = StatusApproved
			t.ApprovedBy = actor.ID
		}
		prepared = append(prepared, t)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i := range prepared {
			id, err := tx.InsertTransfer(ctx, prepared[i])
			if err != nil {
				return err
			}
			prepared[i].ID = id
			entry := shared.AuditEntry{
				ActorID:   actor.ID,
				EventType: "transfer.created",
				Entity:    "weight_transfer",
				EntityID:  fmt.Sprintf("%d", id),
				NewValues: transferValues(prepared[i]),
				Meta:      map[string]any{"group_id": groupID.String()},
				At:        now,
			}
			if err := tx.InsertAuditEntry(ctx, entry); err != nil {
				return err
			}
			if prepared[i].Status != StatusApproved {
				continue
			}
			// Auto-approved route: a single implicit, already-granted gate so
			// the chain history stays complete.
			approval := Approval{
				TransferID:  id,
				ApproverID:  actor.ID,
				WarehouseID: prepared[i].DestWarehouse,
				Level:       0,
				Sequence:    1,
				IsFinal:     true,
				Status:      ApprovalApproved,
				DecidedBy:   actor.ID,
				DecidedAt:   now,
				Note:        "auto-approved waste-to-scrap route",
			}
			if _, err := tx.InsertApproval(ctx, approval); err != nil {
				return err
			}
			autoEntry := shared.AuditEntry{
				ActorID:   actor.ID,
				EventType: "transfer.auto_approved",
				Entity:    "weight_transfer",
				EntityID:  fmt.Sprintf("%d", id),
				Meta:      map[string]any{"route": "waste_to_scrap"},
				At:        now,
			}
			if err := tx.InsertAuditEntry(ctx, autoEntry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prepared, nil
}

// autoApproved reports whether the route skips the approval chain: waste
// headed for a scrap sink, or a lane where neither end demands approval.
func autoApproved(source, dest warehouse.Warehouse, category Category) bool {
	if category == CategoryWaste && dest.HasRole(warehouse.RoleScrapSink) {
		return true
	}
	return !source.RequiresApproval && !dest.RequiresApproval
}

// ChainGateInput describes one gate when building an approval chain.
type ChainGateInput struct {
	ApproverID  int64
	WarehouseID int64
	Level       int
}

// RequestApprovals attaches a sequential approval chain to a pending
// transfer. Gates are numbered in the order given; the last gate is final.
func (s *Service) RequestApprovals(ctx context.Context, actor shared.Actor, transferID int64, gates []ChainGateInput) ([]Approval, error) {
	if len(gates) == 0 {
		return nil, fmt.Errorf("%w: approval chain needs at least one gate", ErrValidation)
	}
	created := make([]Approval, 0, len(gates))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return fmt.Errorf("%w: transfer %d is %s", ErrInvalidState, transferID, t.Status)
		}
		existing, err := tx.ListApprovalsForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: transfer %d already has an approval chain", ErrInvalidState, transferID)
		}
		now := time.Now().UTC()
		for i, gate := range gates {
			a := Approval{
				TransferID:  transferID,
				ApproverID:  gate.ApproverID,
				WarehouseID: gate.WarehouseID,
				Level:       gate.Level,
				Sequence:    i + 1,
				IsFinal:     i == len(gates)-1,
				Status:      ApprovalPending,
			}
			id, err := tx.InsertApproval(ctx, a)
			if err != nil {
				return err
			}
			a.ID = id
			created = append(created, a)
			entry := shared.AuditEntry{
				ActorID:   actor.ID,
				EventType: "transfer.approval_requested",
				Entity:    "weight_transfer_approval",
				EntityID:  fmt.Sprintf("%d", id),
				NewValues: map[string]any{
					"transfer_id":  transferID,
					"approver_id":  gate.ApproverID,
					"warehouse_id": gate.WarehouseID,
					"level":        gate.Level,
					"sequence":     a.Sequence,
					"is_final":     a.IsFinal,
				},
				At: now,
			}
			if err := tx.InsertAuditEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Approve grants one gate of the chain. Gates must be granted in ascending
// sequence order; a race between approvers on the same gate resolves
// first-writer-wins under the transfer row lock, the loser observing
// ErrWrongSequence. Granting the final gate flips the transfer to approved.
func (s *Service) Approve(ctx context.Context, actor shared.Actor, transferID, approvalID int64, note string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return fmt.Errorf("%w: transfer %d is %s", ErrInvalidState, transferID, t.Status)
		}
		approvals, err := tx.ListApprovalsForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		sort.Slice(approvals, func(i, j int) bool { return approvals[i].Sequence < approvals[j].Sequence })
		target, ok := findApproval(approvals, approvalID)
		if !ok {
			return ErrNotFound
		}
		if target.Status != ApprovalPending {
			return fmt.Errorf("%w: approval %d already %s", ErrWrongSequence, approvalID, target.Status)
		}
		if target.ApproverID != 0 && target.ApproverID != actor.ID {
			return fmt.Errorf("%w: approval %d is assigned to user %d", ErrNotAuthorized, approvalID, target.ApproverID)
		}
		allowed, err := s.identity.CanApprove(ctx, actor.ID, target.WarehouseID, target.Level)
		if err != nil {
			return fmt.Errorf("transfer: capability check: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: user %d lacks level %d for warehouse %d",
				ErrNotAuthorized, actor.ID, target.Level, target.WarehouseID)
		}
		for _, a := range approvals {
			if a.Sequence < target.Sequence && a.Status != ApprovalApproved {
				return fmt.Errorf("%w: gate %d (sequence %d) is still %s",
					ErrWrongSequence, a.ID, a.Sequence, a.Status)
			}
		}
		now := time.Now().UTC()
		if err := tx.DecideApproval(ctx, approvalID, ApprovalApproved, actor.ID, note, now); err != nil {
			return err
		}
		entry := shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "transfer.approval_granted",
			Entity:    "weight_transfer_approval",
			EntityID:  fmt.Sprintf("%d", approvalID),
			OldValues: map[string]any{"status": string(ApprovalPending)},
			NewValues: map[string]any{"status": string(ApprovalApproved), "decided_by": actor.ID},
			Meta:      map[string]any{"transfer_id": transferID, "sequence": target.Sequence},
			At:        now,
		}
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return err
		}
		if !target.IsFinal {
			return nil
		}
		if err := tx.UpdateTransferStatus(ctx, transferID, StatusApproved, actor.ID, time.Time{}); err != nil {
			return err
		}
		flip := shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "transfer.approved",
			Entity:    "weight_transfer",
			EntityID:  fmt.Sprintf("%d", transferID),
			OldValues: map[string]any{"status": string(StatusPending)},
			NewValues: map[string]any{"status": string(StatusApproved), "approved_by": actor.ID},
			At:        now,
		}
		return tx.InsertAuditEntry(ctx, flip)
	})
}

// Reject terminates a pending or approved transfer. Rejection is terminal;
// the weight never moves and the transfer cannot be revived. Without an
// approval gate, the requester may withdraw their own transfer; anyone else
// needs approval capability for the source warehouse.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, transferID, approvalID int64, reason string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return fmt.Errorf("%w: transfer %d is %s", ErrInvalidState, transferID, t.Status)
		}
		now := time.Now().UTC()
		if approvalID != 0 {
			approvals, err := tx.ListApprovalsForUpdate(ctx, transferID)
			if err != nil {
				return err
			}
			target, ok := findApproval(approvals, approvalID)
			if !ok {
				return ErrNotFound
			}
			if target.Status != ApprovalPending {
				return fmt.Errorf("%w: approval %d already %s", ErrWrongSequence, approvalID, target.Status)
			}
			allowed, err := s.identity.CanApprove(ctx, actor.ID, target.WarehouseID, target.Level)
			if err != nil {
				return fmt.Errorf("transfer: capability check: %w", err)
			}
			if !allowed {
				return fmt.Errorf("%w: user %d lacks level %d for warehouse %d",
					ErrNotAuthorized, actor.ID, target.Level, target.WarehouseID)
			}
			if err := tx.DecideApproval(ctx, approvalID, ApprovalRejected, actor.ID, reason, now); err != nil {
				return err
			}
		} else if t.RequestedBy != actor.ID {
			level := 1
			approvals, err := tx.ListApprovalsForUpdate(ctx, transferID)
			if err != nil {
				return err
			}
			sort.Slice(approvals, func(i, j int) bool { return approvals[i].Sequence < approvals[j].Sequence })
			for _, a := range approvals {
				if a.Status == ApprovalPending {
					level = a.Level
					break
				}
			}
			allowed, err := s.identity.CanApprove(ctx, actor.ID, t.SourceWarehouse, level)
			if err != nil {
				return fmt.Errorf("transfer: capability check: %w", err)
			}
			if !allowed {
				return fmt.Errorf("%w: user %d cannot reject transfer %d", ErrNotAuthorized, actor.ID, transferID)
			}
		}
		if err := tx.UpdateTransferStatus(ctx, transferID, StatusRejected, t.ApprovedBy, time.Time{}); err != nil {
			return err
		}
		entry := shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "transfer.rejected",
			Entity:    "weight_transfer",
			EntityID:  fmt.Sprintf("%d", transferID),
			OldValues: map[string]any{"status": string(t.Status)},
			NewValues: map[string]any{"status": string(StatusRejected)},
			Meta:      map[string]any{"reason": reason},
			At:        now,
		}
		return tx.InsertAuditEntry(ctx, entry)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.TransferRejected()
	}
	return nil
}

// ExecuteResult reports the ledger state after a completed execution.
type ExecuteResult struct {
	Transfer    WeightTransfer
	SourceStock stock.Stock
	DestStock   stock.Stock
}

// Execute moves the weight of an approved transfer. The source debit,
// destination credit, status flip and audit trail commit in one transaction;
// on any failure nothing is applied and the transfer stays approved, ready
// for retry. A completed transfer can never execute twice.
func (s *Service) Execute(ctx context.Context, actor shared.Actor, transferID int64) (ExecuteResult, error) {
	idemKey := fmt.Sprintf("transfer:execute:%d", transferID)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "transfer"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ExecuteResult{}, fmt.Errorf("%w: transfer %d already executed", ErrInvalidState, transferID)
			}
			return ExecuteResult{}, err
		}
	}
	var (
		result        ExecuteResult
		capacityAlert bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusApproved {
			return fmt.Errorf("%w: transfer %d is %s, only approved transfers execute", ErrInvalidState, transferID, t.Status)
		}
		ref := fmt.Sprintf("%d", t.ID)
		debitBefore, debitAfter, err := s.ledger.DebitTx(ctx, tx, actor, stock.MovementRequest{
			ProductID:    t.ProductID,
			WarehouseID:  t.SourceWarehouse,
			QtyKg:        t.WeightKg,
			FromReserved: t.Type == TypeInitial,
			RefModule:    "transfer",
			RefID:        ref,
		})
		if err != nil {
			return err
		}
		creditBefore, creditAfter, err := s.ledger.CreditTx(ctx, tx, actor, stock.MovementRequest{
			ProductID:   t.ProductID,
			WarehouseID: t.DestWarehouse,
			QtyKg:       t.WeightKg,
			RefModule:   "transfer",
			RefID:       ref,
		})
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.UpdateTransferStatus(ctx, transferID, StatusCompleted, t.ApprovedBy, now); err != nil {
			return err
		}
		meta := map[string]any{
			"weight_kg":  t.WeightKg,
			"type":       string(t.Type),
			"category":   string(t.Category),
			"group_id":   t.GroupID.String(),
			"from_stage": string(t.FromStage),
			"to_stage":   string(t.ToStage),
		}
		if dest, derr := s.warehouses.Get(ctx, t.DestWarehouse); derr == nil {
			if dest.CapacityTracked() && dest.CapacityHeadroomKg() < t.WeightKg {
				capacityAlert = true
				meta["capacity_exceeded"] = true
			}
		}
		entry := shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "transfer.executed",
			Entity:    "weight_transfer",
			EntityID:  ref,
			OldValues: map[string]any{
				"status":             string(StatusApproved),
				"source_quantity_kg": debitBefore.QuantityKg,
				"dest_quantity_kg":   creditBefore.QuantityKg,
			},
			NewValues: map[string]any{
				"status":             string(StatusCompleted),
				"source_quantity_kg": debitAfter.QuantityKg,
				"dest_quantity_kg":   creditAfter.QuantityKg,
			},
			Meta: meta,
			At:   now,
		}
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return err
		}
		t.Status = StatusCompleted
		t.TransferredAt = now
		result = ExecuteResult{Transfer: t, SourceStock: debitAfter, DestStock: creditAfter}
		return nil
	})
	if err != nil {
		// Failed executions release the claim so a later attempt, after the
		// shortfall is resolved, goes through.
		if s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, idemKey); derr != nil {
				s.logger.Error("release idempotency claim", slog.String("key", idemKey), slog.Any("error", derr))
			}
		}
		return ExecuteResult{}, err
	}
	if capacityAlert {
		s.logger.Warn("destination over advisory capacity",
			slog.Int64("transfer_id", transferID),
			slog.Int64("warehouse_id", result.Transfer.DestWarehouse),
			slog.Float64("weight_kg", result.Transfer.WeightKg))
	}
	s.afterExecute(ctx, actor, result)
	return result, nil
}

func (s *Service) afterExecute(ctx context.Context, actor shared.Actor, result ExecuteResult) {
	s.ledger.AfterTxMutation(ctx, stock.MovementDebit, result.SourceStock)
	s.ledger.AfterTxMutation(ctx, stock.MovementCredit, result.DestStock)
	if s.metrics != nil {
		s.metrics.TransferExecuted(string(result.Transfer.Type))
	}
	if s.catalog != nil {
		// The completed transfer now references the spec in the audit trail,
		// so it must not change again. Products without a registered spec
		// have nothing to freeze.
		if err := s.catalog.Freeze(ctx, result.Transfer.ProductID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			s.logger.Error("freeze material spec",
				slog.Int64("product_id", result.Transfer.ProductID), slog.Any("error", err))
		}
	}
	if s.integration == nil {
		return
	}
	ev := TransferExecutedEvent{
		TransferID:      result.Transfer.ID,
		OrderID:         result.Transfer.OrderID,
		OrderMaterialID: result.Transfer.OrderMaterialID,
		ProductID:       result.Transfer.ProductID,
		Type:            result.Transfer.Type,
		Category:        result.Transfer.Category,
		WeightKg:        result.Transfer.WeightKg,
		SourceWarehouse: result.Transfer.SourceWarehouse,
		DestWarehouse:   result.Transfer.DestWarehouse,
		Actor:           actor,
		OccurredAt:      result.Transfer.TransferredAt,
	}
	if err := s.integration.HandleTransferExecuted(ctx, ev); err != nil {
		s.logger.Error("transfer integration handler failed",
			slog.Int64("transfer_id", ev.TransferID), slog.Any("error", err))
	}
}

// Get returns one transfer.
func (s *Service) Get(ctx context.Context, id int64) (WeightTransfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

// ListByOrder returns all transfers of an order.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]WeightTransfer, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// ListByGroup returns the transfer cohort born from one processing step.
func (s *Service) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]WeightTransfer, error) {
	return s.repo.ListByGroup(ctx, groupID)
}

// ListApprovals returns a transfer's approval chain in sequence order.
func (s *Service) ListApprovals(ctx context.Context, transferID int64) ([]Approval, error) {
	return s.repo.ListApprovals(ctx, transferID)
}

// ListStalePending returns pending transfers created before the cutoff. Used
// by the background scanner; pending transfers never expire on their own.
func (s *Service) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]WeightTransfer, error) {
	return s.repo.ListStalePending(ctx, olderThan, limit)
}

func findApproval(approvals []Approval, id int64) (Approval, bool) {
	for _, a := range approvals {
		if a.ID == id {
			return a, true
		}
	}
	return Approval{}, false
}

func transferValues(t WeightTransfer) map[string]any {
	return map[string]any{
		"order_id":          t.OrderID,
		"order_material_id": t.OrderMaterialID,
		"product_id":        t.ProductID,
		"from_stage":        string(t.FromStage),
		"to_stage":          string(t.ToStage),
		"weight_kg":         t.WeightKg,
		"type":              string(t.Type),
		"category":          string(t.Category),
		"source_warehouse":  t.SourceWarehouse,
		"dest_warehouse":    t.DestWarehouse,
		"status":            string(t.Status),
	}
}
