package orders

import (
	"errors"
	"time"
)

// weightTolerance absorbs float rounding on kilogram conservation checks.
const weightTolerance = 0.01

// Stage is a step in an order's material lifecycle. Stages form a closed,
// ordered sequence; display labels are a presentation concern and never used
// as state identifiers.
type Stage string

const (
	StageCreation            Stage = "CREATION"
	StageReview              Stage = "REVIEW"
	StageMaterialReservation Stage = "MATERIAL_RESERVATION"
	StageSorting             Stage = "SORTING"
	StageCutting             Stage = "CUTTING"
	StagePackaging           Stage = "PACKAGING"
	StageInvoicing           Stage = "INVOICING"
	StageDelivery            Stage = "DELIVERY"
)

// stageOrder defines the canonical sequence and which stages may be skipped.
var stageOrder = []struct {
	stage     Stage
	mandatory bool
}{
	{StageCreation, true},
	{StageReview, false},
	{StageMaterialReservation, true},
	{StageSorting, true},
	{StageCutting, true},
	{StagePackaging, false},
	{StageInvoicing, true},
	{StageDelivery, true},
}

func stageIndex(stage Stage) int {
	for i, entry := range stageOrder {
		if entry.stage == stage {
			return i
		}
	}
	return -1
}

// ValidStage reports whether the stage belongs to the closed enumeration.
func ValidStage(stage Stage) bool {
	return stageIndex(stage) >= 0
}

// CanAdvance reports whether an order may move from one stage to another:
// the target must be later in the sequence and every stage strictly between
// must be skippable.
func CanAdvance(from, to Stage) bool {
	fromIdx, toIdx := stageIndex(from), stageIndex(to)
	if fromIdx < 0 || toIdx < 0 || toIdx <= fromIdx {
		return false
	}
	for i := fromIdx + 1; i < toIdx; i++ {
		if stageOrder[i].mandatory {
			return false
		}
	}
	return true
}

// OrderStatus tracks the overall order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a customer order accumulating material requirements.
type Order struct {
	ID               int64
	OrderNumber      string
	CustomerName     string
	CurrentStage     Stage
	RequiredWeightKg float64
	Status           OrderStatus
	CreatedBy        int64
	CreatedAt        time.Time
}

// OrderMaterial tracks one material's weight through every lifecycle step.
type OrderMaterial struct {
	ID               int64
	OrderID          int64
	ProductID        int64
	RequestedKg      float64
	ExtractedKg      float64
	SortedKg         float64
	CutKg            float64
	DeliveredKg      float64
	ReturnedKg       float64
	SortingWasteKg   float64
	CuttingWasteKg   float64
	RemainingKg      float64
	UpdatedAt        time.Time
}

// SortingBalanced checks conservation at the sorting boundary:
// extracted >= sorted + sorting waste.
func (m OrderMaterial) SortingBalanced() bool {
	return m.ExtractedKg+weightTolerance >= m.SortedKg+m.SortingWasteKg
}

// CuttingBalanced checks conservation at the cutting boundary:
// sorted >= cut + cutting waste + remaining.
func (m OrderMaterial) CuttingBalanced() bool {
	return m.SortedKg+weightTolerance >= m.CutKg+m.CuttingWasteKg+m.RemainingKg
}

var (
	// ErrNotFound indicates the order or material does not exist.
	ErrNotFound = errors.New("orders: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("orders: invalid input")
	// ErrStageOrder indicates an illegal stage transition.
	ErrStageOrder = errors.New("orders: illegal stage transition")
	// ErrWeightConservation indicates a weight update would break a
	// conservation invariant.
	ErrWeightConservation = errors.New("orders: weight conservation violated")
)
