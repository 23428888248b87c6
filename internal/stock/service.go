package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error)
	ListByWarehouse(ctx context.Context, warehouseID int64) ([]Stock, error)
}

// TxRepository exposes transactional operations used by the ledger. The
// audit entry insert lives here so a mutation and its audit record commit in
// the same transaction.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, productID, warehouseID int64) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error
}

// MetricsPort counts ledger mutations.
type MetricsPort interface {
	StockMovement(kind string)
}

// Ledger coordinates stock quantity bookkeeping.
type Ledger struct {
	repo    RepositoryPort
	logger  *slog.Logger
	cache   *AvailabilityCache
	metrics MetricsPort
}

// NewLedger builds a Ledger. Cache and metrics are optional.
func NewLedger(repo RepositoryPort, logger *slog.Logger, cache *AvailabilityCache, metrics MetricsPort) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{repo: repo, logger: logger, cache: cache, metrics: metrics}
}

// Reserve increases the reserved quantity. Fails with ErrInsufficientStock
// when the request exceeds the available (unreserved) quantity.
func (l *Ledger) Reserve(ctx context.Context, actor shared.Actor, req MovementRequest) (Stock, error) {
	return l.mutate(ctx, actor, MovementReserve, req)
}

// Release decreases the reserved quantity, clamping at zero. A release that
// exceeds the current reservation is applied clamped and logged as an anomaly.
func (l *Ledger) Release(ctx context.Context, actor shared.Actor, req MovementRequest) (Stock, error) {
	return l.mutate(ctx, actor, MovementRelease, req)
}

// Debit atomically decreases the on-hand quantity. Fails closed when the
// quantity is insufficient; partial debits are never applied.
func (l *Ledger) Debit(ctx context.Context, actor shared.Actor, req MovementRequest) (Stock, error) {
	return l.mutate(ctx, actor, MovementDebit, req)
}

// Credit atomically increases the on-hand quantity, creating the stock row
// when absent.
func (l *Ledger) Credit(ctx context.Context, actor shared.Actor, req MovementRequest) (Stock, error) {
	return l.mutate(ctx, actor, MovementCredit, req)
}

// Available returns the unreserved quantity, read through the snapshot cache
// when one is configured.
func (l *Ledger) Available(ctx context.Context, productID, warehouseID int64) (float64, error) {
	if l.cache != nil {
		if kg, ok, err := l.cache.Get(ctx, productID, warehouseID); err == nil && ok {
			return kg, nil
		}
	}
	stock, err := l.repo.GetStock(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	available := stock.AvailableKg()
	if l.cache != nil {
		_ = l.cache.Set(ctx, productID, warehouseID, available)
	}
	return available, nil
}

// Get returns the stock row for a (product, warehouse) pair.
func (l *Ledger) Get(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	return l.repo.GetStock(ctx, productID, warehouseID)
}

// ListByWarehouse returns all stock rows in a warehouse.
func (l *Ledger) ListByWarehouse(ctx context.Context, warehouseID int64) ([]Stock, error) {
	return l.repo.ListByWarehouse(ctx, warehouseID)
}

func (l *Ledger) mutate(ctx context.Context, actor shared.Actor, kind MovementKind, req MovementRequest) (Stock, error) {
	var result Stock
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		switch kind {
		case MovementDebit:
			_, result, err = l.DebitTx(ctx, tx, actor, req)
		case MovementCredit:
			_, result, err = l.CreditTx(ctx, tx, actor, req)
		case MovementReserve:
			_, result, err = l.ReserveTx(ctx, tx, actor, req)
		case MovementRelease:
			_, result, err = l.ReleaseTx(ctx, tx, actor, req)
		default:
			err = fmt.Errorf("stock: unknown movement kind %q", kind)
		}
		return err
	})
	if err != nil {
		return Stock{}, err
	}
	l.afterMutation(ctx, kind, result)
	return result, nil
}

// DebitTx performs a debit inside the caller's transaction. Returns the
// pre- and post-mutation stock rows for audit composition.
func (l *Ledger) DebitTx(ctx context.Context, tx TxRepository, actor shared.Actor, req MovementRequest) (Stock, Stock, error) {
	if req.QtyKg <= 0 {
		return Stock{}, Stock{}, ErrInvalidQuantity
	}
	before, err := tx.GetStockForUpdate(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Stock{}, Stock{}, ErrInsufficientStock
		}
		return Stock{}, Stock{}, err
	}
	if before.QuantityKg < req.QtyKg-qtyEpsilon {
		return Stock{}, Stock{}, ErrInsufficientStock
	}
	after := before
	after.QuantityKg = roundKg(before.QuantityKg - req.QtyKg)
	if req.FromReserved {
		after.ReservedKg = roundKg(math.Max(0, before.ReservedKg-req.QtyKg))
	}
	// Reservation can never exceed what remains on hand.
	if after.ReservedKg > after.QuantityKg {
		after.ReservedKg = after.QuantityKg
	}
	return l.commitMutation(ctx, tx, actor, MovementDebit, req, before, after)
}

// CreditTx performs a credit inside the caller's transaction, creating the
// stock row when absent.
func (l *Ledger) CreditTx(ctx context.Context, tx TxRepository, actor shared.Actor, req MovementRequest) (Stock, Stock, error) {
	if req.QtyKg <= 0 {
		return Stock{}, Stock{}, ErrInvalidQuantity
	}
	before, err := tx.GetStockForUpdate(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Stock{}, Stock{}, err
		}
		before = Stock{ProductID: req.ProductID, WarehouseID: req.WarehouseID}
	}
	after := before
	after.QuantityKg = roundKg(before.QuantityKg + req.QtyKg)
	return l.commitMutation(ctx, tx, actor, MovementCredit, req, before, after)
}

// ReserveTx earmarks quantity inside the caller's transaction.
func (l *Ledger) ReserveTx(ctx context.Context, tx TxRepository, actor shared.Actor, req MovementRequest) (Stock, Stock, error) {
	if req.QtyKg <= 0 {
		return Stock{}, Stock{}, ErrInvalidQuantity
	}
	before, err := tx.GetStockForUpdate(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Stock{}, Stock{}, ErrInsufficientStock
		}
		return Stock{}, Stock{}, err
	}
	if req.QtyKg > before.AvailableKg()+qtyEpsilon {
		return Stock{}, Stock{}, ErrInsufficientStock
	}
	after := before
	after.ReservedKg = roundKg(before.ReservedKg + req.QtyKg)
	return l.commitMutation(ctx, tx, actor, MovementReserve, req, before, after)
}

// ReleaseTx returns earmarked quantity inside the caller's transaction,
// clamping at zero.
func (l *Ledger) ReleaseTx(ctx context.Context, tx TxRepository, actor shared.Actor, req MovementRequest) (Stock, Stock, error) {
	if req.QtyKg <= 0 {
		return Stock{}, Stock{}, ErrInvalidQuantity
	}
	before, err := tx.GetStockForUpdate(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Stock{}, Stock{}, ErrNotFound
		}
		return Stock{}, Stock{}, err
	}
	release := req.QtyKg
	if release > before.ReservedKg {
		l.logger.Warn("release exceeds reservation, clamping",
			slog.Int64("product_id", req.ProductID),
			slog.Int64("warehouse_id", req.WarehouseID),
			slog.Float64("requested_kg", req.QtyKg),
			slog.Float64("reserved_kg", before.ReservedKg))
		release = before.ReservedKg
	}
	after := before
	after.ReservedKg = roundKg(before.ReservedKg - release)
	return l.commitMutation(ctx, tx, actor, MovementRelease, req, before, after)
}

func (l *Ledger) commitMutation(ctx context.Context, tx TxRepository, actor shared.Actor, kind MovementKind, req MovementRequest, before, after Stock) (Stock, Stock, error) {
	if after.violatesInvariants() {
		l.logger.Error("stock invariant breach detected",
			slog.String("kind", string(kind)),
			slog.Int64("product_id", req.ProductID),
			slog.Int64("warehouse_id", req.WarehouseID),
			slog.Float64("quantity_kg", after.QuantityKg),
			slog.Float64("reserved_kg", after.ReservedKg))
		return Stock{}, Stock{}, ErrDataIntegrity
	}
	now := time.Now().UTC()
	after.UpdatedAt = now
	if err := tx.UpsertStock(ctx, after); err != nil {
		return Stock{}, Stock{}, err
	}
	movement := Movement{
		Kind:        kind,
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		QtyKg:       req.QtyKg,
		RefModule:   req.RefModule,
		RefID:       req.RefID,
		Note:        req.Note,
		ActorID:     actor.ID,
		PostedAt:    now,
	}
	if _, err := tx.InsertMovement(ctx, movement); err != nil {
		return Stock{}, Stock{}, err
	}
	entry := shared.AuditEntry{
		ActorID:   actor.ID,
		EventType: fmt.Sprintf("stock.%s", kind),
		Entity:    "stock",
		EntityID:  fmt.Sprintf("%d:%d", req.ProductID, req.WarehouseID),
		OldValues: map[string]any{"quantity_kg": before.QuantityKg, "reserved_kg": before.ReservedKg},
		NewValues: map[string]any{"quantity_kg": after.QuantityKg, "reserved_kg": after.ReservedKg},
		Meta:      map[string]any{"qty_kg": req.QtyKg, "ref_module": req.RefModule, "ref_id": req.RefID},
		At:        now,
	}
	if err := tx.InsertAuditEntry(ctx, entry); err != nil {
		return Stock{}, Stock{}, err
	}
	return before, after, nil
}

// AfterTxMutation refreshes caches and metrics once the enclosing transaction
// committed. The transfer engine calls this for mutations it composed via
// the Tx variants.
func (l *Ledger) AfterTxMutation(ctx context.Context, kind MovementKind, after Stock) {
	l.afterMutation(ctx, kind, after)
}

func (l *Ledger) afterMutation(ctx context.Context, kind MovementKind, after Stock) {
	if l.metrics != nil {
		l.metrics.StockMovement(string(kind))
	}
	if l.cache != nil {
		_ = l.cache.Invalidate(ctx, after.ProductID, after.WarehouseID)
	}
}

func roundKg(v float64) float64 {
	if math.Abs(v) < qtyEpsilon {
		return 0
	}
	return v
}
