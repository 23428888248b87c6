package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists identity data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertUser(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, created_at)
VALUES ($1,$2,$3,NOW()) RETURNING id`, user.Email, user.Name, user.PasswordHash).Scan(&id)
	return id, err
}

func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE id=$1`, id).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE email=$1`, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *Repository) InsertGrant(ctx context.Context, grant ApproverGrant) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO approver_grants (user_id, warehouse_id, approval_level, granted_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (user_id, warehouse_id, approval_level) DO UPDATE SET granted_at=approver_grants.granted_at
RETURNING id`, grant.UserID, grant.WarehouseID, grant.Level).Scan(&id)
	return id, err
}

func (r *Repository) DeleteGrant(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM approver_grants WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListGrants(ctx context.Context, userID int64) ([]ApproverGrant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, warehouse_id, approval_level, granted_at
FROM approver_grants WHERE user_id=$1 ORDER BY warehouse_id, approval_level`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []ApproverGrant
	for rows.Next() {
		var g ApproverGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.WarehouseID, &g.Level, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *Repository) HasGrant(ctx context.Context, userID, warehouseID int64, level int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM approver_grants WHERE user_id=$1 AND warehouse_id=$2 AND approval_level>=$3 LIMIT 1`,
		userID, warehouseID, level).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}
