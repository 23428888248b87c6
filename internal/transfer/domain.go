package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/paperline-erp/paperline-erp/internal/orders"
)

// Status is the transfer lifecycle state. Stock is mutated only on the
// transition into StatusCompleted, exactly once per transfer.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Type classifies why material moves.
type Type string

const (
	// TypeInitial extracts reserved material out of the main warehouse.
	TypeInitial Type = "INITIAL"
	// TypeStageTransfer moves material between processing stages.
	TypeStageTransfer Type = "STAGE_TRANSFER"
	// TypeReturn sends material back to the customer or main stock.
	TypeReturn Type = "RETURN"
	// TypeWaste routes waste to a scrap location.
	TypeWaste Type = "WASTE"
)

// Category classifies what portion of a processing step moves.
type Category string

const (
	CategorySortedMaterial Category = "SORTED_MATERIAL"
	CategoryCut            Category = "CUT"
	CategoryRemainder      Category = "REMAINDER"
	CategoryWaste          Category = "WASTE"
)

// WeightTransfer is a request to move a weighed quantity of one material
// between two warehouse/stage locations.
type WeightTransfer struct {
	ID              int64
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
	GroupID         uuid.UUID
	Status          Status
	RequestedBy     int64
	ApprovedBy      int64
	TransferredAt   time.Time
	CreatedAt       time.Time
}

// ApprovalStatus is the state of one approval chain record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Approval is one gate in a transfer's sequential approval chain. Records
// are decided in ascending Sequence order; the record flagged IsFinal flips
// the transfer to approved when granted.
type Approval struct {
	ID          int64
	TransferID  int64
	ApproverID  int64
	WarehouseID int64
	Level       int
	Sequence    int
	IsFinal     bool
	Status      ApprovalStatus
	DecidedBy   int64
	DecidedAt   time.Time
	Note        string
}

var (
	// ErrNotFound indicates the transfer or approval does not exist.
	ErrNotFound = errors.New("transfer: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("transfer: invalid input")
	// ErrInvalidState indicates the operation is not permitted in the
	// transfer's current state. Caller error, surfaced immediately.
	ErrInvalidState = errors.New("transfer: invalid state for operation")
	// ErrNotAuthorized indicates the actor lacks the approval capability for
	// the record's warehouse and level.
	ErrNotAuthorized = errors.New("transfer: approver not authorized")
	// ErrWrongSequence indicates an approval attempted out of sequence order
	// or against an already-decided slot.
	ErrWrongSequence = errors.New("transfer: approval out of sequence")
	// ErrDestinationClosed indicates the destination does not accept transfers.
	ErrDestinationClosed = errors.New("transfer: destination does not accept transfers")
)

// ValidType reports whether the transfer type is recognised.
func ValidType(t Type) bool {
	switch t {
	case TypeInitial, TypeStageTransfer, TypeReturn, TypeWaste:
		return true
	}
	return false
}

// ValidCategory reports whether the category is recognised.
func ValidCategory(c Category) bool {
	switch c {
	case CategorySortedMaterial, CategoryCut, CategoryRemainder, CategoryWaste:
		return true
	}
	return false
}
