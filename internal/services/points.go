package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixamincity/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PointsUserRepo is the minimal balance-cache interface for the points engine.
type PointsUserRepo interface {
	AddPointsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	DeductPointsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	GetPointsBalance(ctx context.Context, id uuid.UUID) (int, error)
	SetPointsBalance(ctx context.Context, id uuid.UUID, balance int) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// PointsLedgerRepo is the minimal ledger interface for the points engine.
type PointsLedgerRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.PointsTransaction) error
	ExistsForIssueTx(ctx context.Context, tx pgx.Tx, userID, issueID uuid.UUID, actionType string) (bool, error)
	ExistsReferralTx(ctx context.Context, tx pgx.Tx, userID, referredUserID uuid.UUID) (bool, error)
	ExistsDailyLoginSinceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (bool, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.PointsTransaction, error)
	SumByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	StatsByUserID(ctx context.Context, userID uuid.UUID) (*models.PointsStats, error)
}

// PointsIssueRepo lets the engine zero an issue's points_awarded during rollback.
type PointsIssueRepo interface {
	GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Issue, error)
	SetPointsAwardedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) error
}

// PointsEngine is the only code path allowed to create ledger entries or
// mutate the balance cache. Every operation writes the cache mutation and the
// ledger entry in a single transaction, so the two can never diverge on a
// committed state.
type PointsEngine struct {
	DB     TxBeginner
	Users  PointsUserRepo
	Ledger PointsLedgerRepo
	Issues PointsIssueRepo
	Logger *slog.Logger
}

func NewPointsEngine(db TxBeginner, users PointsUserRepo, ledger PointsLedgerRepo, issues PointsIssueRepo, logger *slog.Logger) *PointsEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PointsEngine{DB: db, Users: users, Ledger: ledger, Issues: issues, Logger: logger}
}

// Award credits amount points to the user. For report_resolved the award is
// guarded on the (user, issue, action) triple: a retry returns
// ErrDuplicateAward and leaves no trace. report_submitted is created exactly
// once at issue creation time by the caller and is not guarded.
func (e *PointsEngine) Award(ctx context.Context, userID uuid.UUID, amount int, actionType string, issueID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("award amount must be positive, got %d", amount)
	}
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if actionType == models.ActionReportResolved && issueID != nil {
		exists, err := e.Ledger.ExistsForIssueTx(ctx, tx, userID, *issueID, actionType)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateAward
		}
	}

	if _, err := e.Users.AddPointsTx(ctx, tx, userID, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	entry := &models.PointsTransaction{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: actionType,
		Value:      amount,
		IssueID:    issueID,
	}
	if err := e.Ledger.CreateTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Deduct spends amount points. The balance check and the decrement are one
// conditional UPDATE at the storage layer, so two concurrent deducts that
// jointly exceed the balance can never both succeed.
func (e *PointsEngine) Deduct(ctx context.Context, userID uuid.UUID, amount int, actionType string, rewardID *uuid.UUID) error {
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := e.DeductTx(ctx, tx, userID, amount, actionType, rewardID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeductTx is Deduct running inside the caller's transaction, so a caller can
// make the deduction and its own writes stand or fall together.
func (e *PointsEngine) DeductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, actionType string, rewardID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}
	if _, err := e.Users.DeductPointsTx(ctx, tx, userID, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return err
	}
	entry := &models.PointsTransaction{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: actionType,
		Value:      -amount,
		RewardID:   rewardID,
	}
	return e.Ledger.CreateTx(ctx, tx, entry)
}

// Rollback reverses a previously awarded issue: it appends a rollback_invalid
// entry of -amount, decrements the balance cache, and zeroes the issue's
// points_awarded, all in one transaction. An issue with points_awarded == 0
// is a no-op.
func (e *PointsEngine) Rollback(ctx context.Context, userID, issueID uuid.UUID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("rollback amount must be positive, got %d", amount)
	}
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	issue, err := e.Issues.GetByIDForUpdateTx(ctx, tx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrIssueNotFound
		}
		return err
	}
	if issue.PointsAwarded == 0 {
		return nil
	}

	if _, err := e.Users.AddPointsTx(ctx, tx, userID, -amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	entry := &models.PointsTransaction{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: models.ActionRollbackInvalid,
		Value:      -amount,
		IssueID:    &issueID,
	}
	if err := e.Ledger.CreateTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := e.Issues.SetPointsAwardedTx(ctx, tx, issueID, 0); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AwardReferral credits the referral bonus once per (user, referred user) pair.
func (e *PointsEngine) AwardReferral(ctx context.Context, userID, referredUserID uuid.UUID) error {
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	exists, err := e.Ledger.ExistsReferralTx(ctx, tx, userID, referredUserID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateAward
	}

	if _, err := e.Users.AddPointsTx(ctx, tx, userID, models.PointsReferralBonus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	entry := &models.PointsTransaction{
		ID:             uuid.New(),
		UserID:         userID,
		ActionType:     models.ActionReferral,
		Value:          models.PointsReferralBonus,
		ReferredUserID: &referredUserID,
	}
	if err := e.Ledger.CreateTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AwardDailyLogin credits the login bonus at most once per UTC day.
func (e *PointsEngine) AwardDailyLogin(ctx context.Context, userID uuid.UUID) error {
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	exists, err := e.Ledger.ExistsDailyLoginSinceTx(ctx, tx, userID, midnight)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateAward
	}

	if _, err := e.Users.AddPointsTx(ctx, tx, userID, models.PointsDailyLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	entry := &models.PointsTransaction{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: models.ActionDailyLogin,
		Value:      models.PointsDailyLogin,
	}
	if err := e.Ledger.CreateTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// History returns the user's most recent ledger entries.
func (e *PointsEngine) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.PointsTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return e.Ledger.ListByUserID(ctx, userID, limit)
}

// Stats aggregates the user's ledger.
func (e *PointsEngine) Stats(ctx context.Context, userID uuid.UUID) (*models.PointsStats, error) {
	return e.Ledger.StatsByUserID(ctx, userID)
}

// Reconcile re-sums the user's ledger and repairs the balance cache when it
// has drifted (e.g. after a crash between writes). Returns the drift that was
// corrected. Maintenance only, never on the hot path.
func (e *PointsEngine) Reconcile(ctx context.Context, userID uuid.UUID) (drift int, err error) {
	authoritative, err := e.Ledger.SumByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	cached, err := e.Users.GetPointsBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	if cached == authoritative {
		return 0, nil
	}
	if err := e.Users.SetPointsBalance(ctx, userID, authoritative); err != nil {
		return 0, err
	}
	e.Logger.Warn("balance cache drift repaired",
		"user_id", userID, "cached", cached, "ledger_sum", authoritative)
	return authoritative - cached, nil
}

// ReconcileAll sweeps every user. Individual failures are logged and skipped
// so one bad row doesn't stall the sweep.
func (e *PointsEngine) ReconcileAll(ctx context.Context) (repaired int, err error) {
	ids, err := e.Users.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		drift, err := e.Reconcile(ctx, id)
		if err != nil {
			e.Logger.Error("reconcile user failed", "user_id", id, "error", err)
			continue
		}
		if drift != 0 {
			repaired++
		}
	}
	return repaired, nil
}
