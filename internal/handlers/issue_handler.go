package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fixamincity/backend/internal/middleware"
	"github.com/fixamincity/backend/internal/models"
	"github.com/fixamincity/backend/internal/services"
)

// Submitter abstracts the submission service.
type Submitter interface {
	Submit(ctx context.Context, in services.SubmitInput) (*models.Issue, error)
}

// StatusUpdater abstracts the admin workflow.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, issueID uuid.UUID, newStatus string) (*models.Issue, error)
}

// IssueReader is the read-side issue repository slice for the handler.
type IssueReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	List(ctx context.Context, limit int) ([]*models.Issue, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Issue, error)
}

// IssueHandler serves /v1/issues endpoints.
type IssueHandler struct {
	Submissions Submitter
	Workflow    StatusUpdater
	Issues      IssueReader
	Logger      *slog.Logger
}

type createIssueRequest struct {
	Category        string  `json:"category"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	PhotoURL        *string `json:"photo_url"`
	LocationLat     float64 `json:"location_lat"`
	LocationLng     float64 `json:"location_lng"`
	LocationAddress *string `json:"location_address"`
	TimeSpentMS     int64   `json:"time_spent_ms"`
}

// CreateIssue handles POST /v1/issues. Anonymous submissions are allowed;
// they simply never earn points.
func (h *IssueHandler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Description == "" {
		http.Error(w, `{"error":"title and description are required"}`, http.StatusBadRequest)
		return
	}
	if !models.KnownCategories[req.Category] {
		http.Error(w, `{"error":"unknown category"}`, http.StatusBadRequest)
		return
	}

	var userID *uuid.UUID
	if id := middleware.IdentityFromCtx(r.Context()); id != nil {
		userID = &id.UserID
	}

	issue, err := h.Submissions.Submit(r.Context(), services.SubmitInput{
		UserID:      userID,
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
		Lat:         req.LocationLat,
		Lng:         req.LocationLng,
		Address:     req.LocationAddress,
		TimeSpentMS: req.TimeSpentMS,
	})
	if err != nil {
		h.Logger.Error("create issue", "error", err)
		http.Error(w, `{"error":"failed to create issue"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

// GetIssue handles GET /v1/issues/{id}.
func (h *IssueHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid issue id"}`, http.StatusBadRequest)
		return
	}
	issue, err := h.Issues.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"issue not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// ListIssues handles GET /v1/issues.
func (h *IssueHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	issues, err := h.Issues.List(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list issues", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// ListMyIssues handles GET /v1/users/me/issues.
func (h *IssueHandler) ListMyIssues(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	issues, err := h.Issues.ListByUserID(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("list user issues", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /v1/issues/{id}/status (admin only, enforced by
// middleware). A committed status change whose points side effect failed is
// still a success response, with a warning the admin UI can surface.
func (h *IssueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid issue id"}`, http.StatusBadRequest)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	issue, err := h.Workflow.UpdateStatus(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, services.ErrUnknownStatus):
		http.Error(w, `{"error":"unknown status"}`, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, services.ErrIssueNotFound):
		http.Error(w, `{"error":"issue not found"}`, http.StatusNotFound)
		return
	case err != nil && issue != nil:
		// Status committed, points side effect pending manual reconciliation.
		writeJSON(w, http.StatusOK, map[string]any{
			"issue":   issue,
			"warning": "status updated but points adjustment failed",
		})
		return
	case err != nil:
		h.Logger.Error("update status", "issue_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue": issue})
}
