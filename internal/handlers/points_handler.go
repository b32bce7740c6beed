package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fixamincity/backend/internal/middleware"
	"github.com/fixamincity/backend/internal/models"
	"github.com/fixamincity/backend/internal/services"
)

// PointsReader is the points-engine slice the handler reads from.
type PointsReader interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.PointsTransaction, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.PointsStats, error)
	AwardDailyLogin(ctx context.Context, userID uuid.UUID) error
	AwardReferral(ctx context.Context, userID, referredUserID uuid.UUID) error
}

// UserStore resolves and maintains the caller's profile, including the
// balance cache.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdatePreferredLanguage(ctx context.Context, id uuid.UUID, lang string) error
}

// PointsHandler serves /v1/points and /v1/users/me endpoints.
type PointsHandler struct {
	Points PointsReader
	Users  UserStore
	Logger *slog.Logger
}

// GetMe handles GET /v1/users/me.
func (h *PointsHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	user, err := h.Users.GetByID(r.Context(), id.UserID)
	if err != nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type syncMeRequest struct {
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	PreferredLanguage string `json:"preferred_language"`
}

// SyncMe handles POST /v1/users/me: first-login profile sync. The identity
// provider owns authentication; this just materializes the local row the
// points ledger hangs off. Idempotent: an existing profile is returned as-is.
func (h *PointsHandler) SyncMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req syncMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, `{"error":"email is required"}`, http.StatusBadRequest)
		return
	}

	if existing, err := h.Users.GetByID(r.Context(), id.UserID); err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	lang := req.PreferredLanguage
	if lang == "" {
		lang = "en"
	}
	user := &models.User{
		ID:                id.UserID,
		Email:             req.Email,
		DisplayName:       req.DisplayName,
		Role:              id.Role,
		PreferredLanguage: lang,
	}
	if err := h.Users.Create(r.Context(), user); err != nil {
		h.Logger.Error("create user profile", "user_id", id.UserID, "error", err)
		http.Error(w, `{"error":"failed to create profile"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type updateLanguageRequest struct {
	PreferredLanguage string `json:"preferred_language"`
}

// UpdateLanguage handles PATCH /v1/users/me/language.
func (h *PointsHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req updateLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PreferredLanguage == "" {
		http.Error(w, `{"error":"preferred_language is required"}`, http.StatusBadRequest)
		return
	}
	if err := h.Users.UpdatePreferredLanguage(r.Context(), id.UserID, req.PreferredLanguage); err != nil {
		h.Logger.Error("update preferred language", "user_id", id.UserID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferred_language": req.PreferredLanguage})
}

// History handles GET /v1/points/history.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.Points.History(r.Context(), id.UserID, queryInt(r, "limit", 20))
	if err != nil {
		h.Logger.Error("points history", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Stats handles GET /v1/points/stats.
func (h *PointsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	stats, err := h.Points.Stats(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("points stats", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DailyLogin handles POST /v1/points/daily-login. A second call on the same
// day reports awarded=false rather than an error.
func (h *PointsHandler) DailyLogin(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	err := h.Points.AwardDailyLogin(r.Context(), id.UserID)
	if errors.Is(err, services.ErrDuplicateAward) {
		writeJSON(w, http.StatusOK, map[string]any{"awarded": false})
		return
	}
	if err != nil {
		h.Logger.Error("daily login award", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"awarded": true, "points": models.PointsDailyLogin})
}

type referralRequest struct {
	ReferredUserID string `json:"referred_user_id"`
}

// Referral handles POST /v1/points/referral.
func (h *PointsHandler) Referral(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req referralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	referredID, err := uuid.Parse(req.ReferredUserID)
	if err != nil {
		http.Error(w, `{"error":"invalid referred_user_id"}`, http.StatusBadRequest)
		return
	}

	err = h.Points.AwardReferral(r.Context(), id.UserID, referredID)
	if errors.Is(err, services.ErrDuplicateAward) {
		writeJSON(w, http.StatusOK, map[string]any{"awarded": false})
		return
	}
	if err != nil {
		h.Logger.Error("referral award", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"awarded": true, "points": models.PointsReferralBonus})
}

// --- shared helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
