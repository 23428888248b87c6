package stock

import (
	"errors"
	"time"
)

// qtyEpsilon absorbs float rounding when comparing kilogram quantities.
const qtyEpsilon = 0.0001

// MovementKind enumerates ledger movements.
type MovementKind string

const (
	// MovementReserve earmarks on-hand quantity for an order.
	MovementReserve MovementKind = "RESERVE"
	// MovementRelease returns earmarked quantity to the available pool.
	MovementRelease MovementKind = "RELEASE"
	// MovementDebit removes quantity from a warehouse.
	MovementDebit MovementKind = "DEBIT"
	// MovementCredit adds quantity to a warehouse.
	MovementCredit MovementKind = "CREDIT"
)

// Stock is the authoritative quantity record per (product, warehouse, batch).
// AvailableKg is derived, never stored.
type Stock struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	BatchNumber string
	QuantityKg  float64
	ReservedKg  float64
	UnitCost    float64
	UpdatedAt   time.Time
}

// AvailableKg returns the unreserved on-hand quantity.
func (s Stock) AvailableKg() float64 {
	return s.QuantityKg - s.ReservedKg
}

// violatesInvariants reports a breach of the ledger invariants:
// quantity >= 0, reserved >= 0, reserved <= quantity.
func (s Stock) violatesInvariants() bool {
	return s.QuantityKg < -qtyEpsilon || s.ReservedKg < -qtyEpsilon || s.ReservedKg > s.QuantityKg+qtyEpsilon
}

// Movement is one ledger mutation, recorded alongside its audit entry.
type Movement struct {
	ID          int64
	Kind        MovementKind
	ProductID   int64
	WarehouseID int64
	QtyKg       float64
	RefModule   string
	RefID       string
	Note        string
	ActorID     int64
	PostedAt    time.Time
}

// MovementRequest describes a requested ledger mutation.
type MovementRequest struct {
	ProductID   int64
	WarehouseID int64
	QtyKg       float64
	// FromReserved consumes reservation together with quantity on debit.
	FromReserved bool
	RefModule    string
	RefID        string
	Note         string
}

var (
	// ErrInsufficientStock indicates the requested quantity exceeds what is
	// available; the operation is never partially applied.
	ErrInsufficientStock = errors.New("stock: insufficient quantity")
	// ErrInvalidQuantity indicates a non-positive requested quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrNotFound indicates no stock row for the (product, warehouse) pair.
	ErrNotFound = errors.New("stock: not found")
	// ErrDataIntegrity indicates an invariant breach observed at write time.
	// Fatal: the operation aborts and must not be retried silently.
	ErrDataIntegrity = errors.New("stock: data integrity violation")
)
