package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fixamincity/backend/internal/models"
)

// SubmissionIssueRepo is the issue persistence slice for submissions.
type SubmissionIssueRepo interface {
	Create(ctx context.Context, i *models.Issue) error
	SetPointsAwarded(ctx context.Context, id uuid.UUID, points int) error
}

// Awarder is the points-engine slice for submissions.
type Awarder interface {
	Award(ctx context.Context, userID uuid.UUID, amount int, actionType string, issueID *uuid.UUID) error
}

// SubmissionService creates issues from citizen reports and awards the
// submission point for valid, non-anonymous ones.
type SubmissionService struct {
	Issues    SubmissionIssueRepo
	Points    Awarder
	Validator *Validator
	Logger    *slog.Logger
}

func NewSubmissionService(issues SubmissionIssueRepo, points Awarder, validator *Validator, logger *slog.Logger) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{Issues: issues, Points: points, Validator: validator, Logger: logger}
}

type SubmitInput struct {
	UserID      *uuid.UUID // nil = anonymous
	Category    string
	Title       string
	Description string
	PhotoURL    *string
	Lat         float64
	Lng         float64
	Address     *string
	TimeSpentMS int64
}

// Submit validates and persists a report. A report always goes through: a
// failed award is logged loudly and does not fail the submission. Anonymous
// submissions never earn points regardless of the verdict.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*models.Issue, error) {
	var photoURL string
	if in.PhotoURL != nil {
		photoURL = *in.PhotoURL
	}
	verdict := s.Validator.Validate(ctx, ValidationInput{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		TimeSpentMS: in.TimeSpentMS,
		PhotoURL:    photoURL,
	})

	status := models.IssueStatusNew
	if verdict.IsValid {
		status = models.IssueStatusConfirmed
	}

	issue := &models.Issue{
		ID:                uuid.New(),
		UserID:            in.UserID,
		Category:          verdict.SuggestedCategory,
		Title:             in.Title,
		Description:       in.Description,
		PhotoURL:          in.PhotoURL,
		LocationLat:       in.Lat,
		LocationLng:       in.Lng,
		LocationAddress:   in.Address,
		Status:            status,
		IsValidSubmission: verdict.IsValid,
		ValidatedBy:       verdict.Method,
		TimeSpentMS:       in.TimeSpentMS,
	}
	if verdict.Method == models.ValidationAI || verdict.Method == models.ValidationAIRejected {
		confidence := verdict.Confidence
		reason := verdict.Reason
		suggested := verdict.SuggestedCategory
		issue.AIConfidence = &confidence
		issue.AIReason = &reason
		issue.SuggestedCategory = &suggested
	}

	if err := s.Issues.Create(ctx, issue); err != nil {
		return nil, err
	}

	if verdict.IsValid && in.UserID != nil {
		if err := s.Points.Award(ctx, *in.UserID, models.PointsReportSubmitted, models.ActionReportSubmitted, &issue.ID); err != nil {
			s.Logger.Error("submission award failed, report kept",
				"issue_id", issue.ID, "user_id", *in.UserID, "error", err)
			return issue, nil
		}
		issue.PointsAwarded = models.PointsReportSubmitted
		if err := s.Issues.SetPointsAwarded(ctx, issue.ID, issue.PointsAwarded); err != nil {
			s.Logger.Error("points_awarded field out of sync with ledger, needs reconciliation",
				"issue_id", issue.ID, "error", err)
		}
	}
	return issue, nil
}
