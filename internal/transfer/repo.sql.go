package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperline-erp/paperline-erp/internal/platform/db"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
)

// Repository persists transfers and approval chains in PostgreSQL. Its
// transactions embed the stock transaction surface so the execution engine
// debits, credits and flips status against one connection.
type Repository struct {
	pool      *pgxpool.Pool
	stockRepo *stock.Repository
	audit     *shared.AuditWriter
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, stockRepo *stock.Repository, audit *shared.AuditWriter) *Repository {
	return &Repository{pool: pool, stockRepo: stockRepo, audit: audit}
}

type txRepository struct {
	stock.TxRepository
	tx    pgx.Tx
	audit *shared.AuditWriter
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: r.stockRepo.TxFrom(tx), tx: tx, audit: r.audit})
	})
}

const transferColumns = `id, order_id, order_material_id, product_id, from_stage, to_stage, weight_kg,
transfer_type, category, source_warehouse_id, dest_warehouse_id, group_id, status,
requested_by, COALESCE(approved_by,0), COALESCE(transferred_at,'epoch'::timestamptz), created_at`

func scanTransfer(row pgx.Row) (WeightTransfer, error) {
	var t WeightTransfer
	err := row.Scan(&t.ID, &t.OrderID, &t.OrderMaterialID, &t.ProductID, &t.FromStage, &t.ToStage, &t.WeightKg,
		&t.Type, &t.Category, &t.SourceWarehouse, &t.DestWarehouse, &t.GroupID, &t.Status,
		&t.RequestedBy, &t.ApprovedBy, &t.TransferredAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WeightTransfer{}, ErrNotFound
		}
		return WeightTransfer{}, err
	}
	if t.TransferredAt.Unix() == 0 {
		t.TransferredAt = time.Time{}
	}
	return t, nil
}

func (r *Repository) GetTransfer(ctx context.Context, id int64) (WeightTransfer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM weight_transfers WHERE id=$1`, id)
	return scanTransfer(row)
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]WeightTransfer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM weight_transfers
WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]WeightTransfer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM weight_transfers
WHERE group_id=$1 ORDER BY id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]WeightTransfer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM weight_transfers
WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`, string(StatusPending), olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

func collectTransfers(rows pgx.Rows) ([]WeightTransfer, error) {
	defer rows.Close()
	var transfers []WeightTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

const approvalColumns = `id, transfer_id, COALESCE(approver_id,0), warehouse_id, level, sequence, is_final,
status, COALESCE(decided_by,0), COALESCE(decided_at,'epoch'::timestamptz), COALESCE(note,'')`

func scanApproval(row pgx.Row) (Approval, error) {
	var a Approval
	err := row.Scan(&a.ID, &a.TransferID, &a.ApproverID, &a.WarehouseID, &a.Level, &a.Sequence, &a.IsFinal,
		&a.Status, &a.DecidedBy, &a.DecidedAt, &a.Note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, ErrNotFound
		}
		return Approval{}, err
	}
	if a.DecidedAt.Unix() == 0 {
		a.DecidedAt = time.Time{}
	}
	return a, nil
}

func (r *Repository) ListApprovals(ctx context.Context, transferID int64) ([]Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+approvalColumns+` FROM weight_transfer_approvals
WHERE transfer_id=$1 ORDER BY sequence ASC`, transferID)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

func collectApprovals(rows pgx.Rows) ([]Approval, error) {
	defer rows.Close()
	var approvals []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

func (r *txRepository) InsertTransfer(ctx context.Context, t WeightTransfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO weight_transfers
(order_id, order_material_id, product_id, from_stage, to_stage, weight_kg, transfer_type, category,
 source_warehouse_id, dest_warehouse_id, group_id, status, requested_by, approved_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,0),$15) RETURNING id`,
		t.OrderID, t.OrderMaterialID, t.ProductID, string(t.FromStage), string(t.ToStage), t.WeightKg,
		string(t.Type), string(t.Category), t.SourceWarehouse, t.DestWarehouse, t.GroupID,
		string(t.Status), t.RequestedBy, t.ApprovedBy, t.CreatedAt).Scan(&id)
	return id, err
}

// GetTransferForUpdate locks the transfer row, serialising approvals and
// execution attempts per transfer.
func (r *txRepository) GetTransferForUpdate(ctx context.Context, id int64) (WeightTransfer, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM weight_transfers WHERE id=$1 FOR UPDATE`, id)
	return scanTransfer(row)
}

func (r *txRepository) UpdateTransferStatus(ctx context.Context, id int64, status Status, approvedBy int64, transferredAt time.Time) error {
	var at any
	if !transferredAt.IsZero() {
		at = transferredAt
	}
	tag, err := r.tx.Exec(ctx, `UPDATE weight_transfers
SET status=$2, approved_by=COALESCE(NULLIF($3,0)::bigint, approved_by), transferred_at=COALESCE($4, transferred_at)
WHERE id=$1`, id, string(status), approvedBy, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertApproval(ctx context.Context, a Approval) (int64, error) {
	var id int64
	var decidedAt any
	if !a.DecidedAt.IsZero() {
		decidedAt = a.DecidedAt
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO weight_transfer_approvals
(transfer_id, approver_id, warehouse_id, level, sequence, is_final, status, decided_by, decided_at, note)
VALUES ($1,NULLIF($2,0),$3,$4,$5,$6,$7,NULLIF($8,0),$9,NULLIF($10,'')) RETURNING id`,
		a.TransferID, a.ApproverID, a.WarehouseID, a.Level, a.Sequence, a.IsFinal,
		string(a.Status), a.DecidedBy, decidedAt, a.Note).Scan(&id)
	return id, err
}

func (r *txRepository) ListApprovalsForUpdate(ctx context.Context, transferID int64) ([]Approval, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+approvalColumns+` FROM weight_transfer_approvals
WHERE transfer_id=$1 ORDER BY sequence ASC FOR UPDATE`, transferID)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

func (r *txRepository) DecideApproval(ctx context.Context, id int64, status ApprovalStatus, decidedBy int64, note string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE weight_transfer_approvals
SET status=$2, decided_by=$3, decided_at=$4, note=NULLIF($5,'')
WHERE id=$1 AND status=$6`, id, string(status), decidedBy, at, note, string(ApprovalPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWrongSequence
	}
	return nil
}

// InsertAuditEntry writes into the shared audit log inside this transaction.
func (r *txRepository) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	return r.audit.RecordTx(ctx, r.tx, entry)
}
