package warehouse

import (
	"context"
	"strings"

	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, wh Warehouse) (int64, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	List(ctx context.Context) ([]Warehouse, error)
	SetRoles(ctx context.Context, id int64, roles []Role) error
	SetAcceptsTransfers(ctx context.Context, id int64, accepts bool) error
	AdjustUsedCapacity(ctx context.Context, id int64, deltaKg float64) error
}

// AuditPort records warehouse configuration changes.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service manages warehouse master data.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a warehouse service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes a new warehouse.
type CreateInput struct {
	Code             string
	Name             string
	Kind             Kind
	Roles            []Role
	TotalCapacityKg  float64
	AcceptsTransfers bool
	RequiresApproval bool
	ActorID          int64
}

// Create registers a warehouse.
func (s *Service) Create(ctx context.Context, input CreateInput) (Warehouse, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" || input.Name == "" {
		return Warehouse{}, ErrValidation
	}
	if !ValidKind(input.Kind) {
		return Warehouse{}, ErrUnknownKind
	}
	wh := Warehouse{
		Code:             input.Code,
		Name:             input.Name,
		Kind:             input.Kind,
		Roles:            input.Roles,
		TotalCapacityKg:  input.TotalCapacityKg,
		AcceptsTransfers: input.AcceptsTransfers,
		RequiresApproval: input.RequiresApproval,
	}
	id, err := s.repo.Insert(ctx, wh)
	if err != nil {
		return Warehouse{}, err
	}
	wh.ID = id
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			ActorID:   input.ActorID,
			EventType: "warehouse.created",
			Entity:    "warehouse",
			EntityID:  input.Code,
			NewValues: map[string]any{"kind": string(input.Kind), "capacity_kg": input.TotalCapacityKg},
		})
	}
	return wh, nil
}

// Get fetches a warehouse by id.
func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.Get(ctx, id)
}

// List returns all warehouses.
func (s *Service) List(ctx context.Context) ([]Warehouse, error) {
	return s.repo.List(ctx)
}

// AssignRoles replaces the role set of a warehouse.
func (s *Service) AssignRoles(ctx context.Context, actor shared.Actor, id int64, roles []Role) error {
	wh, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetRoles(ctx, id, roles); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "warehouse.roles_changed",
			Entity:    "warehouse",
			EntityID:  wh.Code,
			OldValues: map[string]any{"roles": wh.Roles},
			NewValues: map[string]any{"roles": roles},
		})
	}
	return nil
}

// SetAcceptsTransfers toggles whether the warehouse may receive transfers.
func (s *Service) SetAcceptsTransfers(ctx context.Context, actor shared.Actor, id int64, accepts bool) error {
	wh, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetAcceptsTransfers(ctx, id, accepts); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "warehouse.accepts_transfers_changed",
			Entity:    "warehouse",
			EntityID:  wh.Code,
			OldValues: map[string]any{"accepts_transfers": wh.AcceptsTransfers},
			NewValues: map[string]any{"accepts_transfers": accepts},
		})
	}
	return nil
}
