package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixamincity/backend/internal/models"
)

// WorkflowIssueRepo is the issue persistence slice for the admin workflow.
type WorkflowIssueRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// WorkflowPoints is the points-engine slice the workflow triggers.
type WorkflowPoints interface {
	Award(ctx context.Context, userID uuid.UUID, amount int, actionType string, issueID *uuid.UUID) error
	Rollback(ctx context.Context, userID, issueID uuid.UUID, amount int) error
}

// Workflow drives the issue status state machine. The machine itself is
// permissive; the points engine's idempotence guards are what prevent double
// awards when an admin toggles an issue back and forth.
type Workflow struct {
	Issues WorkflowIssueRepo
	Points WorkflowPoints
	Logger *slog.Logger
}

func NewWorkflow(issues WorkflowIssueRepo, points WorkflowPoints, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{Issues: issues, Points: points, Logger: logger}
}

// UpdateStatus records the transition, then applies its points side effects:
// entering resolved awards the resolution bonus, entering invalid rolls back
// a previous award. The status change commits first and stands even when the
// points side fails; such a failure is returned along with the updated issue
// and logged as an inconsistency requiring reconciliation.
func (w *Workflow) UpdateStatus(ctx context.Context, issueID uuid.UUID, newStatus string) (*models.Issue, error) {
	if !models.KnownStatuses[newStatus] {
		return nil, ErrUnknownStatus
	}

	issue, err := w.Issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	prev := issue.Status
	if prev == newStatus {
		return issue, nil
	}

	if err := w.Issues.UpdateStatus(ctx, issueID, newStatus); err != nil {
		return nil, err
	}
	issue.Status = newStatus

	switch {
	case newStatus == models.IssueStatusResolved && issue.UserID != nil:
		err := w.Points.Award(ctx, *issue.UserID, models.PointsReportResolved, models.ActionReportResolved, &issue.ID)
		if errors.Is(err, ErrDuplicateAward) {
			w.Logger.Info("resolution bonus already awarded", "issue_id", issue.ID, "user_id", *issue.UserID)
			return issue, nil
		}
		if err != nil {
			w.Logger.Error("resolution award failed, status committed without it",
				"issue_id", issue.ID, "user_id", *issue.UserID, "error", err)
			return issue, err
		}

	case newStatus == models.IssueStatusInvalid && issue.PointsAwarded > 0 && issue.UserID != nil:
		if err := w.Points.Rollback(ctx, *issue.UserID, issue.ID, issue.PointsAwarded); err != nil {
			w.Logger.Error("points rollback failed, status committed without it",
				"issue_id", issue.ID, "user_id", *issue.UserID, "error", err)
			return issue, err
		}
		issue.PointsAwarded = 0
	}
	return issue, nil
}
