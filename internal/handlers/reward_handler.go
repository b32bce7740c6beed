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

// Redeemer abstracts the redemption engine.
type Redeemer interface {
	Redeem(ctx context.Context, userID, rewardID uuid.UUID) (*services.RedemptionResult, error)
	ValidateCode(ctx context.Context, code string) (*models.Redemption, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Redemption, error)
}

// RewardCatalog is the reward repository slice for the catalog endpoints.
type RewardCatalog interface {
	ListAvailable(ctx context.Context) ([]*models.Reward, error)
	Create(ctx context.Context, rw *models.Reward) error
}

// RewardHandler serves /v1/rewards and /v1/redemptions endpoints.
type RewardHandler struct {
	Rewards     RewardCatalog
	Redemptions Redeemer
	Logger      *slog.Logger
}

// ListRewards handles GET /v1/rewards.
func (h *RewardHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.Rewards.ListAvailable(r.Context())
	if err != nil {
		h.Logger.Error("list rewards", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

type createRewardRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Cost           int    `json:"cost"`
	Available      *bool  `json:"available"`
	InventoryCount *int   `json:"inventory_count"` // null = unlimited
}

// CreateReward handles POST /v1/rewards (admin catalog management).
func (h *RewardHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req createRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Cost <= 0 {
		http.Error(w, `{"error":"title and a positive cost are required"}`, http.StatusBadRequest)
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	reward := &models.Reward{
		ID:             uuid.New(),
		Title:          req.Title,
		Description:    req.Description,
		Cost:           req.Cost,
		Available:      available,
		InventoryCount: req.InventoryCount,
	}
	if err := h.Rewards.Create(r.Context(), reward); err != nil {
		h.Logger.Error("create reward", "error", err)
		http.Error(w, `{"error":"failed to create reward"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

// Redeem handles POST /v1/rewards/{id}/redeem.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	rewardID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid reward id"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Redemptions.Redeem(r.Context(), id.UserID, rewardID)
	switch {
	case errors.Is(err, services.ErrRewardNotFound):
		http.Error(w, `{"error":"reward not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, services.ErrRewardUnavailable):
		http.Error(w, `{"error":"reward is not available"}`, http.StatusConflict)
		return
	case errors.Is(err, services.ErrOutOfStock):
		http.Error(w, `{"error":"reward is out of stock"}`, http.StatusConflict)
		return
	case errors.Is(err, services.ErrInsufficientFunds):
		http.Error(w, `{"error":"insufficient points"}`, http.StatusPaymentRequired)
		return
	case err != nil:
		h.Logger.Error("redeem", "reward_id", rewardID, "error", err)
		http.Error(w, `{"error":"redemption failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ListRedemptions handles GET /v1/redemptions.
func (h *RewardHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Redemptions.ListByUser(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("list redemptions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type validateCodeRequest struct {
	Code string `json:"code"`
}

// ValidateCode handles POST /v1/redemptions/validate (admin verification flow).
func (h *RewardHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
		return
	}

	red, err := h.Redemptions.ValidateCode(r.Context(), req.Code)
	switch {
	case errors.Is(err, services.ErrRedemptionNotFound):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "message": "invalid redemption code"})
		return
	case errors.Is(err, services.ErrCodeAlreadyUsed):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "message": "redemption code already used"})
		return
	case err != nil:
		h.Logger.Error("validate code", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "redemption": red})
}

// UseRedemption handles POST /v1/redemptions/{id}/use (admin verification flow).
func (h *RewardHandler) UseRedemption(w http.ResponseWriter, r *http.Request) {
	redemptionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid redemption id"}`, http.StatusBadRequest)
		return
	}
	err = h.Redemptions.MarkUsed(r.Context(), redemptionID)
	switch {
	case errors.Is(err, services.ErrRedemptionNotFound):
		http.Error(w, `{"error":"redemption not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, services.ErrCodeAlreadyUsed):
		http.Error(w, `{"error":"redemption already used"}`, http.StatusConflict)
		return
	case err != nil:
		h.Logger.Error("use redemption", "redemption_id", redemptionID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"used": true})
}
