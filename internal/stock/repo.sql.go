package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperline-erp/paperline-erp/internal/platform/db"
	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// Repository persists stock data in PostgreSQL.
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
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, audit: r.audit})
	})
}

// TxFrom wraps an existing pgx transaction so other modules can compose
// ledger mutations into their own transaction boundary.
func (r *Repository) TxFrom(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, audit: r.audit}
}

func (r *Repository) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	var s Stock
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, warehouse_id, COALESCE(batch_number,''), quantity_kg, reserved_kg, unit_cost, updated_at
FROM stocks WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).
		Scan(&s.ID, &s.ProductID, &s.WarehouseID, &s.BatchNumber, &s.QuantityKg, &s.ReservedKg, &s.UnitCost, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

func (r *Repository) ListByWarehouse(ctx context.Context, warehouseID int64) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, COALESCE(batch_number,''), quantity_kg, reserved_kg, unit_cost, updated_at
FROM stocks WHERE warehouse_id=$1 ORDER BY product_id ASC`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stocks []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.ID, &s.ProductID, &s.WarehouseID, &s.BatchNumber, &s.QuantityKg, &s.ReservedKg, &s.UnitCost, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	var s Stock
	err := r.tx.QueryRow(ctx, `SELECT id, product_id, warehouse_id, COALESCE(batch_number,''), quantity_kg, reserved_kg, unit_cost, updated_at
FROM stocks WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID).
		Scan(&s.ID, &s.ProductID, &s.WarehouseID, &s.BatchNumber, &s.QuantityKg, &s.ReservedKg, &s.UnitCost, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{ProductID: productID, WarehouseID: warehouseID}, ErrNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

func (r *txRepository) UpsertStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stocks (product_id, warehouse_id, batch_number, quantity_kg, reserved_kg, unit_cost, updated_at)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,NOW())
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET quantity_kg=EXCLUDED.quantity_kg, reserved_kg=EXCLUDED.reserved_kg, unit_cost=EXCLUDED.unit_cost, updated_at=NOW()`,
		stock.ProductID, stock.WarehouseID, stock.BatchNumber, stock.QuantityKg, stock.ReservedKg, stock.UnitCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (kind, product_id, warehouse_id, qty_kg, ref_module, ref_id, note, actor_id, posted_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9) RETURNING id`,
		string(movement.Kind), movement.ProductID, movement.WarehouseID, movement.QtyKg, movement.RefModule, movement.RefID, movement.Note, movement.ActorID, movement.PostedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	return r.audit.RecordTx(ctx, r.tx, entry)
}
