package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixamincity/backend/internal/models"
)

type RewardRepo struct {
	pool *pgxpool.Pool
}

func NewRewardRepo(pool *pgxpool.Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

func (r *RewardRepo) Create(ctx context.Context, rw *models.Reward) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO rewards (id, title, description, cost, available, inventory_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, rw.ID, rw.Title, rw.Description, rw.Cost, rw.Available, rw.InventoryCount).Scan(&rw.CreatedAt)
}

func (r *RewardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	var rw models.Reward
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, description, cost, available, inventory_count, created_at
		FROM rewards WHERE id = $1
	`, id).Scan(&rw.ID, &rw.Title, &rw.Description, &rw.Cost, &rw.Available, &rw.InventoryCount, &rw.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rw, nil
}

// ListAvailable returns rewards that are flagged available and either track
// no inventory or still have stock.
func (r *RewardRepo) ListAvailable(ctx context.Context) ([]*models.Reward, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, cost, available, inventory_count, created_at
		FROM rewards
		WHERE available AND (inventory_count IS NULL OR inventory_count > 0)
		ORDER BY cost
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Reward
	for rows.Next() {
		var rw models.Reward
		if err := rows.Scan(&rw.ID, &rw.Title, &rw.Description, &rw.Cost, &rw.Available, &rw.InventoryCount, &rw.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rw)
	}
	return list, rows.Err()
}

// DecrementInventory takes one unit of stock, refusing to go below zero.
// Returns ErrNoStock when no unit could be taken.
func (r *RewardRepo) DecrementInventory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rewards SET inventory_count = inventory_count - 1
		WHERE id = $1 AND inventory_count IS NOT NULL AND inventory_count > 0
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoStock
	}
	return nil
}
