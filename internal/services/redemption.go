package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixamincity/backend/internal/models"
	"github.com/fixamincity/backend/internal/repository"
)

const redemptionCodePrefix = "FMC"

// RedemptionRewardRepo is the minimal reward catalog interface for redemption.
type RedemptionRewardRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reward, error)
	DecrementInventory(ctx context.Context, id uuid.UUID) error
}

// RedemptionStore is the minimal redemption record interface.
type RedemptionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, red *models.Redemption) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error)
	GetByCode(ctx context.Context, code string) (*models.Redemption, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Redemption, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

// Deducter is the points-engine slice the redemption engine needs.
type Deducter interface {
	DeductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, actionType string, rewardID *uuid.UUID) error
}

// RedemptionEngine exchanges points for catalog rewards. The deduction and
// the redemption record commit in one transaction, so a redemption can never
// exist without its ledger entry; the inventory decrement afterwards is
// best-effort and only ever downgrades to a warning.
type RedemptionEngine struct {
	DB          TxBeginner
	Rewards     RedemptionRewardRepo
	Redemptions RedemptionStore
	Points      Deducter
	Logger      *slog.Logger
}

func NewRedemptionEngine(db TxBeginner, rewards RedemptionRewardRepo, redemptions RedemptionStore, points Deducter, logger *slog.Logger) *RedemptionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedemptionEngine{DB: db, Rewards: rewards, Redemptions: redemptions, Points: points, Logger: logger}
}

// RedemptionResult is returned on a successful redemption. InventoryWarning
// is set when the stock counter could not be adjusted; the redemption stands
// regardless (inventory drift is preferable to double-charging a user).
type RedemptionResult struct {
	RedemptionID     uuid.UUID `json:"redemption_id"`
	Code             string    `json:"redemption_code"`
	InventoryWarning string    `json:"inventory_warning,omitempty"`
}

// Redeem is not idempotent by design: each call that reaches the deduction
// spends points exactly once. Callers must not retry blindly.
func (e *RedemptionEngine) Redeem(ctx context.Context, userID, rewardID uuid.UUID) (*RedemptionResult, error) {
	reward, err := e.Rewards.GetByID(ctx, rewardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	if !reward.Available {
		return nil, ErrRewardUnavailable
	}
	if reward.InventoryCount != nil && *reward.InventoryCount <= 0 {
		return nil, ErrOutOfStock
	}

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// The conditional decrement inside DeductTx is the authoritative
	// affordability check; any balance the client showed is advisory.
	if err := e.Points.DeductTx(ctx, tx, userID, reward.Cost, models.ActionRewardRedemption, &rewardID); err != nil {
		return nil, err
	}

	red := &models.Redemption{
		ID:       uuid.New(),
		UserID:   userID,
		RewardID: rewardID,
		Code:     NewRedemptionCode(),
		Used:     false,
	}
	if err := e.Redemptions.CreateTx(ctx, tx, red); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := &RedemptionResult{RedemptionID: red.ID, Code: red.Code}
	if reward.InventoryCount != nil {
		if err := e.Rewards.DecrementInventory(ctx, rewardID); err != nil {
			e.Logger.Warn("inventory decrement failed after redemption",
				"reward_id", rewardID, "redemption_id", red.ID, "error", err)
			result.InventoryWarning = "inventory counter could not be adjusted"
		}
	}
	return result, nil
}

// ValidateCode looks up a redemption by its code for the verification flow.
func (e *RedemptionEngine) ValidateCode(ctx context.Context, code string) (*models.Redemption, error) {
	red, err := e.Redemptions.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}
	if red.Used {
		return red, ErrCodeAlreadyUsed
	}
	return red, nil
}

// MarkUsed checks a redemption off exactly once.
func (e *RedemptionEngine) MarkUsed(ctx context.Context, id uuid.UUID) error {
	if _, err := e.Redemptions.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRedemptionNotFound
		}
		return err
	}
	if err := e.Redemptions.MarkUsed(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) {
			return ErrCodeAlreadyUsed
		}
		return err
	}
	return nil
}

// ListByUser returns the user's redemptions, newest first.
func (e *RedemptionEngine) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Redemption, error) {
	return e.Redemptions.ListByUserID(ctx, userID)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRedemptionCode builds a short human-legible token: prefix, millisecond
// timestamp in base36, and a 9-character random suffix. Collisions are
// overwhelmingly unlikely; the unique index on redemption_code is the hard
// guarantee.
func NewRedemptionCode() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return fmt.Sprintf("%s-%s-%s", redemptionCodePrefix, ts, strings.ToUpper(string(suffix)))
}
