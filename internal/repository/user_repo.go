package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixamincity/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, role, points_balance, preferred_language)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.DisplayName, u.Role, u.PointsBalance, u.PreferredLanguage).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, role, points_balance, preferred_language, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.PointsBalance, &u.PreferredLanguage, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdatePreferredLanguage(ctx context.Context, id uuid.UUID, lang string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET preferred_language = $2, updated_at = now() WHERE id = $1
	`, id, lang)
	return err
}

// ListIDs returns every user id. Used by the balance reconciliation sweep.
func (r *UserRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetPointsBalance reads the denormalized balance cache.
func (r *UserRepo) GetPointsBalance(ctx context.Context, id uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT points_balance FROM users WHERE id = $1`, id).Scan(&balance)
	return balance, err
}

// AddPointsTx adds amount (may be negative for rollbacks) to the balance
// cache and returns the new balance. Call within a transaction.
func (r *UserRepo) AddPointsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET points_balance = points_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING points_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// DeductPointsTx atomically deducts amount if points_balance >= amount.
// Returns pgx.ErrNoRows when the balance is too low (or the user is missing);
// concurrent deducts by the same user can never drive the balance negative.
func (r *UserRepo) DeductPointsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET points_balance = points_balance - $1, updated_at = now()
		WHERE id = $2 AND points_balance >= $1
		RETURNING points_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// SetPointsBalance overwrites the balance cache. Reconciliation only; the
// points engine never calls this.
func (r *UserRepo) SetPointsBalance(ctx context.Context, id uuid.UUID, balance int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET points_balance = $2, updated_at = now() WHERE id = $1
	`, id, balance)
	return err
}
