package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists warehouses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, wh Warehouse) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (code, name, kind, roles, total_capacity_kg, used_capacity_kg, reserved_capacity_kg, accepts_transfers, requires_approval, created_at)
VALUES ($1,$2,$3,$4,$5,0,0,$6,$7,NOW()) RETURNING id`,
		wh.Code, wh.Name, string(wh.Kind), rolesToStrings(wh.Roles), wh.TotalCapacityKg, wh.AcceptsTransfers, wh.RequiresApproval).Scan(&id)
	return id, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	var wh Warehouse
	var kind string
	var roles []string
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, kind, roles, total_capacity_kg, used_capacity_kg, reserved_capacity_kg, accepts_transfers, requires_approval
FROM warehouses WHERE id=$1`, id).Scan(&wh.ID, &wh.Code, &wh.Name, &kind, &roles, &wh.TotalCapacityKg, &wh.UsedCapacityKg, &wh.ReservedCapacityKg, &wh.AcceptsTransfers, &wh.RequiresApproval)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	wh.Kind = Kind(kind)
	wh.Roles = stringsToRoles(roles)
	return wh, nil
}

func (r *Repository) List(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, kind, roles, total_capacity_kg, used_capacity_kg, reserved_capacity_kg, accepts_transfers, requires_approval
FROM warehouses ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Warehouse
	for rows.Next() {
		var wh Warehouse
		var kind string
		var roles []string
		if err := rows.Scan(&wh.ID, &wh.Code, &wh.Name, &kind, &roles, &wh.TotalCapacityKg, &wh.UsedCapacityKg, &wh.ReservedCapacityKg, &wh.AcceptsTransfers, &wh.RequiresApproval); err != nil {
			return nil, err
		}
		wh.Kind = Kind(kind)
		wh.Roles = stringsToRoles(roles)
		result = append(result, wh)
	}
	return result, rows.Err()
}

func (r *Repository) SetRoles(ctx context.Context, id int64, roles []Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses SET roles=$2, updated_at=NOW() WHERE id=$1`, id, rolesToStrings(roles))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetAcceptsTransfers(ctx context.Context, id int64, accepts bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses SET accepts_transfers=$2, updated_at=NOW() WHERE id=$1`, id, accepts)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AdjustUsedCapacity(ctx context.Context, id int64, deltaKg float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE warehouses SET used_capacity_kg = used_capacity_kg + $2, updated_at=NOW() WHERE id=$1`, id, deltaKg)
	return err
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(values []string) []Role {
	out := make([]Role, len(values))
	for i, v := range values {
		out[i] = Role(v)
	}
	return out
}
