package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixamincity/backend/internal/models"
)

type IssueRepo struct {
	pool *pgxpool.Pool
}

func NewIssueRepo(pool *pgxpool.Pool) *IssueRepo {
	return &IssueRepo{pool: pool}
}

const issueColumns = `id, user_id, category, title, description, photo_url,
	location_lat, location_lng, location_address, status,
	is_valid_submission, validated_by, ai_confidence, ai_reason,
	suggested_category, submission_time_spent_ms, points_awarded,
	created_at, updated_at`

func scanIssue(row pgx.Row) (*models.Issue, error) {
	var i models.Issue
	err := row.Scan(&i.ID, &i.UserID, &i.Category, &i.Title, &i.Description, &i.PhotoURL,
		&i.LocationLat, &i.LocationLng, &i.LocationAddress, &i.Status,
		&i.IsValidSubmission, &i.ValidatedBy, &i.AIConfidence, &i.AIReason,
		&i.SuggestedCategory, &i.TimeSpentMS, &i.PointsAwarded,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *IssueRepo) Create(ctx context.Context, i *models.Issue) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO issues (id, user_id, category, title, description, photo_url,
			location_lat, location_lng, location_address, status,
			is_valid_submission, validated_by, ai_confidence, ai_reason,
			suggested_category, submission_time_spent_ms, points_awarded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`, i.ID, i.UserID, i.Category, i.Title, i.Description, i.PhotoURL,
		i.LocationLat, i.LocationLng, i.LocationAddress, i.Status,
		i.IsValidSubmission, i.ValidatedBy, i.AIConfidence, i.AIReason,
		i.SuggestedCategory, i.TimeSpentMS, i.PointsAwarded).Scan(&i.CreatedAt, &i.UpdatedAt)
}

func (r *IssueRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	return scanIssue(r.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id))
}

// GetByIDForUpdateTx locks the issue row for update. Call within a transaction.
func (r *IssueRepo) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Issue, error) {
	return scanIssue(tx.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1 FOR UPDATE`, id))
}

func (r *IssueRepo) List(ctx context.Context, limit int) ([]*models.Issue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+issueColumns+` FROM issues ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIssues(rows)
}

func (r *IssueRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Issue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+issueColumns+` FROM issues WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIssues(rows)
}

func collectIssues(rows pgx.Rows) ([]*models.Issue, error) {
	var list []*models.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

func (r *IssueRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE issues SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

func (r *IssueRepo) SetPointsAwarded(ctx context.Context, id uuid.UUID, points int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE issues SET points_awarded = $2, updated_at = now() WHERE id = $1
	`, id, points)
	return err
}

// SetPointsAwardedTx updates points_awarded inside the given transaction, so
// a rollback zeroes the field in the same logical operation as its ledger entry.
func (r *IssueRepo) SetPointsAwardedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) error {
	_, err := tx.Exec(ctx, `
		UPDATE issues SET points_awarded = $2, updated_at = now() WHERE id = $1
	`, id, points)
	return err
}
