package catalog

import "errors"

// MaterialType enumerates physical material forms.
type MaterialType string

const (
	// MaterialRoll is a paper roll.
	MaterialRoll MaterialType = "ROLL"
	// MaterialSheet is cut sheet material.
	MaterialSheet MaterialType = "SHEET"
	// MaterialBale is compressed recovered material.
	MaterialBale MaterialType = "BALE"
	// MaterialDigma is digma-grade board.
	MaterialDigma MaterialType = "DIGMA"
)

// Spec describes a material specification. A spec referenced by a completed
// transfer is frozen: its physical attributes may no longer change, so the
// audit trail keeps its meaning retroactively.
type Spec struct {
	ID           int64
	Code         string
	Type         MaterialType
	WidthCm      float64
	GrammageGsm  float64
	QualityGrade string
	RollNumber   string
	UnitCost     float64
	Frozen       bool
}

var (
	// ErrNotFound indicates the spec does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
	// ErrSpecFrozen indicates the spec is referenced by a completed transfer
	// and can no longer be modified.
	ErrSpecFrozen = errors.New("catalog: spec referenced by completed transfer")
)

// ValidMaterialType reports whether the type is recognised.
func ValidMaterialType(t MaterialType) bool {
	switch t {
	case MaterialRoll, MaterialSheet, MaterialBale, MaterialDigma:
		return true
	}
	return false
}
