package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixamincity/backend/internal/models"
)

// ErrNoStock is returned by RewardRepo.DecrementInventory when the reward has
// no unit left to take.
var ErrNoStock = errors.New("no inventory unit available")

// ErrAlreadyUsed is returned by RedemptionRepo.MarkUsed when the redemption
// was checked off before.
var ErrAlreadyUsed = errors.New("redemption already used")

type RedemptionRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionRepo(pool *pgxpool.Pool) *RedemptionRepo {
	return &RedemptionRepo{pool: pool}
}

// CreateTx inserts a redemption inside the given transaction. The unique
// index on redemption_code is the hard backstop against code collisions.
func (r *RedemptionRepo) CreateTx(ctx context.Context, tx pgx.Tx, red *models.Redemption) error {
	return tx.QueryRow(ctx, `
		INSERT INTO redemptions (id, user_id, reward_id, redemption_code, used)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING redeemed_at
	`, red.ID, red.UserID, red.RewardID, red.Code, red.Used).Scan(&red.RedeemedAt)
}

func (r *RedemptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	var red models.Redemption
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, reward_id, redemption_code, used, redeemed_at
		FROM redemptions WHERE id = $1
	`, id).Scan(&red.ID, &red.UserID, &red.RewardID, &red.Code, &red.Used, &red.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &red, nil
}

func (r *RedemptionRepo) GetByCode(ctx context.Context, code string) (*models.Redemption, error) {
	var red models.Redemption
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, reward_id, redemption_code, used, redeemed_at
		FROM redemptions WHERE redemption_code = $1
	`, code).Scan(&red.ID, &red.UserID, &red.RewardID, &red.Code, &red.Used, &red.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &red, nil
}

func (r *RedemptionRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Redemption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, reward_id, redemption_code, used, redeemed_at
		FROM redemptions WHERE user_id = $1 ORDER BY redeemed_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Redemption
	for rows.Next() {
		var red models.Redemption
		if err := rows.Scan(&red.ID, &red.UserID, &red.RewardID, &red.Code, &red.Used, &red.RedeemedAt); err != nil {
			return nil, err
		}
		list = append(list, &red)
	}
	return list, rows.Err()
}

// MarkUsed flips used to true exactly once. Returns ErrAlreadyUsed when the
// flag was already set.
func (r *RedemptionRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE redemptions SET used = TRUE WHERE id = $1 AND NOT used
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyUsed
	}
	return nil
}
