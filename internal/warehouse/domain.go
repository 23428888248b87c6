package warehouse

import "errors"

// Kind classifies a warehouse by its primary storage purpose.
type Kind string

const (
	// KindMain holds raw incoming stock.
	KindMain Kind = "MAIN"
	// KindScrap collects waste material.
	KindScrap Kind = "SCRAP"
	// KindSorting stages material during sorting.
	KindSorting Kind = "SORTING"
	// KindCustody holds customer-owned material.
	KindCustody Kind = "CUSTODY"
)

// Role is an explicit capability assigned to a warehouse. Roles are assigned
// independently of Kind so a location can be repurposed without changing its
// storage classification.
type Role string

const (
	// RoleReceiveTransfers marks a warehouse that may be a transfer destination.
	RoleReceiveTransfers Role = "RECEIVE_TRANSFERS"
	// RoleScrapSink marks a warehouse accepting waste without approval.
	RoleScrapSink Role = "SCRAP_SINK"
	// RoleSortingStation marks a sorting processing location.
	RoleSortingStation Role = "SORTING_STATION"
	// RoleCuttingStation marks a cutting processing location.
	RoleCuttingStation Role = "CUTTING_STATION"
)

// Warehouse models a storage location participating in transfers.
type Warehouse struct {
	ID                 int64
	Code               string
	Name               string
	Kind               Kind
	Roles              []Role
	TotalCapacityKg    float64
	UsedCapacityKg     float64
	ReservedCapacityKg float64
	AcceptsTransfers   bool
	RequiresApproval   bool
}

// HasRole reports whether the warehouse carries the given role.
func (w Warehouse) HasRole(role Role) bool {
	for _, r := range w.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CapacityHeadroomKg returns remaining advisory capacity. Zero total capacity
// means capacity is untracked and headroom is unbounded.
func (w Warehouse) CapacityHeadroomKg() float64 {
	if w.TotalCapacityKg <= 0 {
		return 0
	}
	return w.TotalCapacityKg - w.UsedCapacityKg - w.ReservedCapacityKg
}

// CapacityTracked reports whether the warehouse has a configured capacity.
func (w Warehouse) CapacityTracked() bool {
	return w.TotalCapacityKg > 0
}

var (
	// ErrNotFound indicates the warehouse does not exist.
	ErrNotFound = errors.New("warehouse: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("warehouse: invalid input")
	// ErrUnknownKind indicates an unrecognised warehouse kind.
	ErrUnknownKind = errors.New("warehouse: unknown kind")
)

// ValidKind reports whether the kind is part of the closed enumeration.
func ValidKind(kind Kind) bool {
	switch kind {
	case KindMain, KindScrap, KindSorting, KindCustody:
		return true
	}
	return false
}
