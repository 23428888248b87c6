package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// TransferExecutedEvent is emitted after a transfer's execution transaction
// commits. Consumers run best-effort; the ledger mutation is already durable.
type TransferExecutedEvent struct {
	TransferID      int64
	OrderID         int64
	OrderMaterialID int64
	ProductID       int64
	Type            Type
	Category        Category
	WeightKg        float64
	SourceWarehouse int64
	DestWarehouse   int64
	Actor           shared.Actor
	OccurredAt      time.Time
}

// OrdersIntegration folds executed transfers back into order material
// bookkeeping: initial extractions accumulate on the material record, returns
// and deliveries close it out. Stage transfers between processing locations
// carry no bookkeeping of their own; sorting and cutting outcomes are posted
// by the processing recorder when the cohort is created.
type OrdersIntegration struct {
	orders *orders.Service
}

// NewOrdersIntegration builds the executed-transfer consumer.
func NewOrdersIntegration(svc *orders.Service) *OrdersIntegration {
	return &OrdersIntegration{orders: svc}
}

// HandleTransferExecuted applies the material bookkeeping for one executed
// transfer. Transfers not linked to an order material are skipped.
func (h *OrdersIntegration) HandleTransferExecuted(ctx context.Context, ev TransferExecutedEvent) error {
	if h.orders == nil || ev.OrderMaterialID == 0 {
		return nil
	}
	var err error
	switch ev.Type {
	case TypeInitial:
		_, err = h.orders.RecordExtraction(ctx, ev.Actor, ev.OrderMaterialID, ev.WeightKg)
	case TypeReturn:
		_, err = h.orders.RecordReturn(ctx, ev.Actor, ev.OrderMaterialID, ev.WeightKg)
	}
	if err != nil && errors.Is(err, orders.ErrNotFound) {
		return nil
	}
	return err
}
