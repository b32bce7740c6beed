package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger action_type enums.
const (
	ActionReportSubmitted  = "report_submitted"
	ActionReportResolved   = "report_resolved"
	ActionRewardRedemption = "reward_redemption"
	ActionRollbackInvalid  = "rollback_invalid"
	ActionReferral         = "referral"
	ActionDailyLogin       = "daily_login"
	ActionBonus            = "bonus"
)

// Point values per earning action.
const (
	PointsReportSubmitted = 1
	PointsReportResolved  = 15
	PointsReferralBonus   = 25
	PointsWeeklyBonus     = 5
	PointsDailyLogin      = 2
)

// PointsTransaction is an append-only ledger entry. Entries are never edited
// or deleted; corrections are made via new offsetting entries. The ledger is
// the authoritative source for balance reconciliation.
type PointsTransaction struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	ActionType     string     `json:"action_type"`
	Value          int        `json:"value"` // positive = earn, negative = spend
	IssueID        *uuid.UUID `json:"issue_id,omitempty"`
	RewardID       *uuid.UUID `json:"reward_id,omitempty"`
	ReferredUserID *uuid.UUID `json:"referred_user_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PointsStats is an aggregate view over a user's ledger.
type PointsStats struct {
	TotalEarned       int `json:"total_earned"`
	TotalSpent        int `json:"total_spent"`
	ReportSubmissions int `json:"report_submissions"`
	ReportResolutions int `json:"report_resolutions"`
	Referrals         int `json:"referrals"`
	DailyLogins       int `json:"daily_logins"`
	RewardRedemptions int `json:"reward_redemptions"`
}
