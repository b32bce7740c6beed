package models

import (
	"time"

	"github.com/google/uuid"
)

// Issue categories reporters can choose from.
const (
	CategoryPothole     = "pothole"
	CategoryStreetlight = "streetlight"
	CategoryGraffiti    = "graffiti"
	CategoryGarbage     = "garbage"
	CategoryOther       = "other"
)

// KnownCategories is the set of categories the platform accepts.
var KnownCategories = map[string]bool{
	CategoryPothole:     true,
	CategoryStreetlight: true,
	CategoryGraffiti:    true,
	CategoryGarbage:     true,
	CategoryOther:       true,
}

// Issue workflow statuses. The workflow is intentionally permissive: admins
// may move an issue backward or sideways, and the points engine's own guards
// prevent double awards.
const (
	IssueStatusNew          = "new"
	IssueStatusConfirmed    = "confirmed"
	IssueStatusAcknowledged = "acknowledged"
	IssueStatusInProgress   = "in_progress"
	IssueStatusResolved     = "resolved"
	IssueStatusInvalid      = "invalid"
)

// KnownStatuses is the set of statuses the workflow accepts.
var KnownStatuses = map[string]bool{
	IssueStatusNew:          true,
	IssueStatusConfirmed:    true,
	IssueStatusAcknowledged: true,
	IssueStatusInProgress:   true,
	IssueStatusResolved:     true,
	IssueStatusInvalid:      true,
}

// Validation methods recorded on an issue.
const (
	ValidationAI            = "ai"
	ValidationAIRejected    = "ai_rejected"
	ValidationBasic         = "basic"
	ValidationBasicRejected = "basic_rejected"
	ValidationNone          = "none"
)

type Issue struct {
	ID                uuid.UUID  `json:"id"`
	UserID            *uuid.UUID `json:"user_id,omitempty"` // nil = anonymous report
	Category          string     `json:"category"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	PhotoURL          *string    `json:"photo_url,omitempty"`
	LocationLat       float64    `json:"location_lat"`
	LocationLng       float64    `json:"location_lng"`
	LocationAddress   *string    `json:"location_address,omitempty"`
	Status            string     `json:"status"`
	IsValidSubmission bool       `json:"is_valid_submission"`
	ValidatedBy       string     `json:"validated_by"`
	AIConfidence      *int       `json:"ai_confidence,omitempty"`
	AIReason          *string    `json:"ai_reason,omitempty"`
	SuggestedCategory *string    `json:"suggested_category,omitempty"`
	TimeSpentMS       int64      `json:"submission_time_spent_ms"`
	PointsAwarded     int        `json:"points_awarded"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
