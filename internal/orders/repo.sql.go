package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperline-erp/paperline-erp/internal/platform/db"
	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditWriter
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditWriter) *Repository {
	return &Repository{pool: pool, audit: audit}
}

type txRepository struct {
	tx    pgx.Tx
	audit *shared.AuditWriter
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, audit: r.audit})
	})
}

const orderColumns = `id, order_number, customer_name, current_stage, required_weight_kg, status, created_by, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var stage, status string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &stage, &o.RequiredWeightKg, &status, &o.CreatedBy, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.CurrentStage = Stage(stage)
	o.Status = OrderStatus(status)
	return o, nil
}

const materialColumns = `id, order_id, product_id, requested_kg, extracted_kg, sorted_kg, cut_kg, delivered_kg, returned_kg, sorting_waste_kg, cutting_waste_kg, remaining_kg, updated_at`

func scanMaterial(row pgx.Row) (OrderMaterial, error) {
	var m OrderMaterial
	err := row.Scan(&m.ID, &m.OrderID, &m.ProductID, &m.RequestedKg, &m.ExtractedKg, &m.SortedKg, &m.CutKg, &m.DeliveredKg, &m.ReturnedKg, &m.SortingWasteKg, &m.CuttingWasteKg, &m.RemainingKg, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderMaterial{}, ErrNotFound
		}
		return OrderMaterial{}, err
	}
	return m, nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *Repository) GetMaterial(ctx context.Context, id int64) (OrderMaterial, error) {
	return scanMaterial(r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM order_materials WHERE id=$1`, id))
}

func (r *Repository) ListMaterials(ctx context.Context, orderID int64) ([]OrderMaterial, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM order_materials WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []OrderMaterial
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *txRepository) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (order_number, customer_name, current_stage, required_weight_kg, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		order.OrderNumber, order.CustomerName, string(order.CurrentStage), order.RequiredWeightKg, string(order.Status), order.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertMaterial(ctx context.Context, material OrderMaterial) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO order_materials (order_id, product_id, requested_kg, updated_at)
VALUES ($1,$2,$3,NOW()) RETURNING id`, material.OrderID, material.ProductID, material.RequestedKg).Scan(&id)
	return id, err
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetMaterialForUpdate(ctx context.Context, id int64) (OrderMaterial, error) {
	return scanMaterial(r.tx.QueryRow(ctx, `SELECT `+materialColumns+` FROM order_materials WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateOrderStage(ctx context.Context, id int64, stage Stage) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET current_stage=$2, updated_at=NOW() WHERE id=$1`, id, string(stage))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateMaterialWeights(ctx context.Context, material OrderMaterial) error {
	tag, err := r.tx.Exec(ctx, `UPDATE order_materials
SET extracted_kg=$2, sorted_kg=$3, cut_kg=$4, delivered_kg=$5, returned_kg=$6, sorting_waste_kg=$7, cutting_waste_kg=$8, remaining_kg=$9, updated_at=NOW()
WHERE id=$1`,
		material.ID, material.ExtractedKg, material.SortedKg, material.CutKg, material.DeliveredKg, material.ReturnedKg, material.SortingWasteKg, material.CuttingWasteKg, material.RemainingKg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	return r.audit.RecordTx(ctx, r.tx, entry)
}
