package models

import (
	"time"

	"github.com/google/uuid"
)

type Reward struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Cost           int       `json:"cost"`
	Available      bool      `json:"available"`
	InventoryCount *int      `json:"inventory_count,omitempty"` // nil = unlimited
	CreatedAt      time.Time `json:"created_at"`
}

// Redemption records a reward exchanged for points. The code is presented by
// the user and checked off exactly once by the verification flow.
type Redemption struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	RewardID   uuid.UUID `json:"reward_id"`
	Code       string    `json:"redemption_code"`
	Used       bool      `json:"used"`
	RedeemedAt time.Time `json:"redeemed_at"`
}
