package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists material specs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const specColumns = `id, code, material_type, width_cm, grammage_gsm, quality_grade, roll_number, unit_cost, frozen`

func (r *Repository) Insert(ctx context.Context, spec Spec) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO material_specs (code, material_type, width_cm, grammage_gsm, quality_grade, roll_number, unit_cost, frozen, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,false,NOW()) RETURNING id`,
		spec.Code, string(spec.Type), spec.WidthCm, spec.GrammageGsm, spec.QualityGrade, spec.RollNumber, spec.UnitCost).Scan(&id)
	return id, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Spec, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+specColumns+` FROM material_specs WHERE id=$1`, id))
}

func (r *Repository) GetByCode(ctx context.Context, code string) (Spec, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+specColumns+` FROM material_specs WHERE code=$1`, code))
}

func (r *Repository) Update(ctx context.Context, spec Spec) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_specs
SET width_cm=$2, grammage_gsm=$3, quality_grade=$4, unit_cost=$5, updated_at=NOW()
WHERE id=$1 AND NOT frozen`, spec.ID, spec.WidthCm, spec.GrammageGsm, spec.QualityGrade, spec.UnitCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSpecFrozen
	}
	return nil
}

func (r *Repository) Freeze(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_specs SET frozen=true, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]Spec, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+specColumns+` FROM material_specs ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var specs []Spec
	for rows.Next() {
		var spec Spec
		var materialType string
		if err := rows.Scan(&spec.ID, &spec.Code, &materialType, &spec.WidthCm, &spec.GrammageGsm, &spec.QualityGrade, &spec.RollNumber, &spec.UnitCost, &spec.Frozen); err != nil {
			return nil, err
		}
		spec.Type = MaterialType(materialType)
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (Spec, error) {
	var spec Spec
	var materialType string
	err := row.Scan(&spec.ID, &spec.Code, &materialType, &spec.WidthCm, &spec.GrammageGsm, &spec.QualityGrade, &spec.RollNumber, &spec.UnitCost, &spec.Frozen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Spec{}, ErrNotFound
		}
		return Spec{}, err
	}
	spec.Type = MaterialType(materialType)
	return spec, nil
}
