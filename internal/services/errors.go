package services

import "errors"

// Sentinel errors surfaced by the points and redemption engines. Anything
// else coming out of an engine is a persistence failure: callers must not
// assume any partial mutation succeeded.
var (
	ErrInsufficientFunds  = errors.New("insufficient points")
	ErrUserNotFound       = errors.New("user not found")
	ErrIssueNotFound      = errors.New("issue not found")
	ErrDuplicateAward     = errors.New("points already awarded")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrRewardUnavailable  = errors.New("reward is not available")
	ErrOutOfStock         = errors.New("reward is out of stock")
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrCodeAlreadyUsed    = errors.New("redemption code already used")
	ErrUnknownStatus      = errors.New("unknown issue status")
)
