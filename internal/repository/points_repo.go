package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixamincity/backend/internal/models"
)

// PointsRepo persists the append-only ledger. There is no update or delete:
// corrections happen via new offsetting entries.
type PointsRepo struct {
	pool *pgxpool.Pool
}

func NewPointsRepo(pool *pgxpool.Pool) *PointsRepo {
	return &PointsRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *PointsRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.PointsTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO points_transactions (id, user_id, action_type, value, issue_id, reward_id, referred_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.UserID, p.ActionType, p.Value, p.IssueID, p.RewardID, p.ReferredUserID).Scan(&p.CreatedAt)
}

// ExistsForIssueTx reports whether an entry with the same
// (user, issue, action) triple already exists. This is the idempotence guard
// for one-shot issue-scoped awards.
func (r *PointsRepo) ExistsForIssueTx(ctx context.Context, tx pgx.Tx, userID, issueID uuid.UUID, actionType string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM points_transactions
			WHERE user_id = $1 AND issue_id = $2 AND action_type = $3
		)
	`, userID, issueID, actionType).Scan(&exists)
	return exists, err
}

// ExistsReferralTx reports whether the (user, referred user) pair was already
// credited a referral bonus.
func (r *PointsRepo) ExistsReferralTx(ctx context.Context, tx pgx.Tx, userID, referredUserID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM points_transactions
			WHERE user_id = $1 AND action_type = 'referral' AND referred_user_id = $2
		)
	`, userID, referredUserID).Scan(&exists)
	return exists, err
}

// ExistsDailyLoginSinceTx reports whether the user already collected a daily
// login bonus at or after the given instant.
func (r *PointsRepo) ExistsDailyLoginSinceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM points_transactions
			WHERE user_id = $1 AND action_type = 'daily_login' AND created_at >= $2
		)
	`, userID, since).Scan(&exists)
	return exists, err
}

func (r *PointsRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.PointsTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, action_type, value, issue_id, reward_id, referred_user_id, created_at
		FROM points_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PointsTransaction
	for rows.Next() {
		var p models.PointsTransaction
		if err := rows.Scan(&p.ID, &p.UserID, &p.ActionType, &p.Value, &p.IssueID, &p.RewardID, &p.ReferredUserID, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// SumByUserID re-sums the ledger for a user. This is the authoritative
// balance; the users.points_balance cache must always converge to it.
func (r *PointsRepo) SumByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0) FROM points_transactions WHERE user_id = $1
	`, userID).Scan(&total)
	return total, err
}

func (r *PointsRepo) StatsByUserID(ctx context.Context, userID uuid.UUID) (*models.PointsStats, error) {
	var s models.PointsStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(value) FILTER (WHERE value > 0), 0),
			COALESCE(-SUM(value) FILTER (WHERE value < 0), 0),
			COUNT(*) FILTER (WHERE action_type = 'report_submitted'),
			COUNT(*) FILTER (WHERE action_type = 'report_resolved'),
			COUNT(*) FILTER (WHERE action_type = 'referral'),
			COUNT(*) FILTER (WHERE action_type = 'daily_login'),
			COUNT(*) FILTER (WHERE action_type = 'reward_redemption')
		FROM points_transactions WHERE user_id = $1
	`, userID).Scan(&s.TotalEarned, &s.TotalSpent, &s.ReportSubmissions, &s.ReportResolutions, &s.Referrals, &s.DailyLogins, &s.RewardRedemptions)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
