package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, spec Spec) (int64, error)
	Get(ctx context.Context, id int64) (Spec, error)
	GetByCode(ctx context.Context, code string) (Spec, error)
	Update(ctx context.Context, spec Spec) error
	Freeze(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Spec, error)
}

// AuditPort records catalog changes.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service manages material specifications.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	titel cases.Caser
}

// NewService constructs a catalog service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, titel: cases.Title(language.English)}
}

// NormalizeGrade canonicalises a free-form quality grade label, e.g.
// "first grade" and "FIRST GRADE" both become "First Grade".
func (s *Service) NormalizeGrade(grade string) string {
	return s.titel.String(strings.ToLower(strings.TrimSpace(grade)))
}

// CreateInput describes a new material spec.
type CreateInput struct {
	Code         string
	Type         MaterialType
	WidthCm      float64
	GrammageGsm  float64
	QualityGrade string
	RollNumber   string
	UnitCost     float64
	ActorID      int64
}

// Create registers a material specification.
func (s *Service) Create(ctx context.Context, input CreateInput) (Spec, error) {
	input.Code = strings.TrimSpace(input.Code)
	if input.Code == "" {
		return Spec{}, ErrValidation
	}
	if !ValidMaterialType(input.Type) {
		return Spec{}, ErrValidation
	}
	if input.WidthCm < 0 || input.GrammageGsm < 0 || input.UnitCost < 0 {
		return Spec{}, ErrValidation
	}
	spec := Spec{
		Code:         input.Code,
		Type:         input.Type,
		WidthCm:      input.WidthCm,
		GrammageGsm:  input.GrammageGsm,
		QualityGrade: s.NormalizeGrade(input.QualityGrade),
		RollNumber:   strings.TrimSpace(input.RollNumber),
		UnitCost:     input.UnitCost,
	}
	id, err := s.repo.Insert(ctx, spec)
	if err != nil {
		return Spec{}, err
	}
	spec.ID = id
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			ActorID:   input.ActorID,
			EventType: "catalog.spec_created",
			Entity:    "material_spec",
			EntityID:  spec.Code,
			NewValues: map[string]any{"type": string(spec.Type), "width_cm": spec.WidthCm, "grammage_gsm": spec.GrammageGsm, "grade": spec.QualityGrade},
		})
	}
	return spec, nil
}

// Get fetches a spec by id.
func (s *Service) Get(ctx context.Context, id int64) (Spec, error) {
	return s.repo.Get(ctx, id)
}

// List returns all specs.
func (s *Service) List(ctx context.Context) ([]Spec, error) {
	return s.repo.List(ctx)
}

// UpdateInput carries mutable spec fields.
type UpdateInput struct {
	ID           int64
	WidthCm      float64
	GrammageGsm  float64
	QualityGrade string
	UnitCost     float64
	ActorID      int64
}

// Update modifies a spec. Frozen specs reject physical attribute changes so
// historical audit entries keep their meaning.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Spec, error) {
	spec, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return Spec{}, err
	}
	if spec.Frozen {
		return Spec{}, ErrSpecFrozen
	}
	if input.WidthCm < 0 || input.GrammageGsm < 0 || input.UnitCost < 0 {
		return Spec{}, ErrValidation
	}
	old := spec
	spec.WidthCm = input.WidthCm
	spec.GrammageGsm = input.GrammageGsm
	spec.QualityGrade = s.NormalizeGrade(input.QualityGrade)
	spec.UnitCost = input.UnitCost
	if err := s.repo.Update(ctx, spec); err != nil {
		return Spec{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			ActorID:   input.ActorID,
			EventType: "catalog.spec_updated",
			Entity:    "material_spec",
			EntityID:  spec.Code,
			OldValues: map[string]any{"width_cm": old.WidthCm, "grammage_gsm": old.GrammageGsm, "grade": old.QualityGrade, "unit_cost": old.UnitCost},
			NewValues: map[string]any{"width_cm": spec.WidthCm, "grammage_gsm": spec.GrammageGsm, "grade": spec.QualityGrade, "unit_cost": spec.UnitCost},
		})
	}
	return spec, nil
}

// Freeze marks a spec immutable. Called once a completed transfer references
// the spec in the audit trail.
func (s *Service) Freeze(ctx context.Context, id int64) error {
	spec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if spec.Frozen {
		return nil
	}
	return s.repo.Freeze(ctx, id)
}
