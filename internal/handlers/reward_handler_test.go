package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fixamincity/backend/internal/middleware"
	"github.com/fixamincity/backend/internal/models"
	"github.com/fixamincity/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubRedeemer struct {
	redeemResult   *services.RedemptionResult
	redeemErr      error
	validateResult *models.Redemption
	validateErr    error
	markUsedErr    error
	list           []*models.Redemption
}

func (s *stubRedeemer) Redeem(context.Context, uuid.UUID, uuid.UUID) (*services.RedemptionResult, error) {
	return s.redeemResult, s.redeemErr
}

func (s *stubRedeemer) ValidateCode(context.Context, string) (*models.Redemption, error) {
	return s.validateResult, s.validateErr
}

func (s *stubRedeemer) MarkUsed(context.Context, uuid.UUID) error { return s.markUsedErr }

func (s *stubRedeemer) ListByUser(context.Context, uuid.UUID) ([]*models.Redemption, error) {
	return s.list, nil
}

type stubCatalog struct {
	rewards []*models.Reward
	err     error
	created []*models.Reward
}

func (s *stubCatalog) ListAvailable(context.Context) ([]*models.Reward, error) {
	return s.rewards, s.err
}

func (s *stubCatalog) Create(_ context.Context, rw *models.Reward) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, rw)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRewardHandler(red *stubRedeemer, cat *stubCatalog) *RewardHandler {
	if cat == nil {
		cat = &stubCatalog{}
	}
	return &RewardHandler{Rewards: cat, Redemptions: red, Logger: quietLogger()}
}

// asUser injects an authenticated identity into the request context.
func asUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), &middleware.Identity{
		UserID: userID,
		Role:   models.RoleUser,
	}))
}

// ---------------------------------------------------------------------------
// Redeem status mapping
// ---------------------------------------------------------------------------

func TestRedeem_Success(t *testing.T) {
	result := &services.RedemptionResult{RedemptionID: uuid.New(), Code: "FMC-abc-DEFGHIJKL"}
	h := newRewardHandler(&stubRedeemer{redeemResult: result}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/rewards/"+uuid.NewString()+"/redeem", nil)
	req.SetPathValue("id", uuid.NewString())
	req = asUser(req, uuid.New())
	rec := httptest.NewRecorder()
	h.Redeem(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got services.RedemptionResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Code != result.Code {
		t.Errorf("code: got %q, want %q", got.Code, result.Code)
	}
}

func TestRedeem_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"reward not found", services.ErrRewardNotFound, http.StatusNotFound},
		{"unavailable", services.ErrRewardUnavailable, http.StatusConflict},
		{"out of stock", services.ErrOutOfStock, http.StatusConflict},
		{"insufficient points", services.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newRewardHandler(&stubRedeemer{redeemErr: tc.err}, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/rewards/x/redeem", nil)
			req.SetPathValue("id", uuid.NewString())
			req = asUser(req, uuid.New())
			rec := httptest.NewRecorder()
			h.Redeem(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRedeem_RequiresAuth(t *testing.T) {
	h := newRewardHandler(&stubRedeemer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/rewards/x/redeem", nil)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.Redeem(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRedeem_BadRewardID(t *testing.T) {
	h := newRewardHandler(&stubRedeemer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/rewards/nope/redeem", nil)
	req.SetPathValue("id", "nope")
	req = asUser(req, uuid.New())
	rec := httptest.NewRecorder()
	h.Redeem(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Code validation flow
// ---------------------------------------------------------------------------

func TestValidateCode_Responses(t *testing.T) {
	valid := &models.Redemption{ID: uuid.New(), Code: "FMC-abc-DEFGHIJKL"}
	cases := []struct {
		name      string
		stub      *stubRedeemer
		wantValid bool
	}{
		{"valid code", &stubRedeemer{validateResult: valid}, true},
		{"unknown code", &stubRedeemer{validateErr: services.ErrRedemptionNotFound}, false},
		{"used code", &stubRedeemer{validateResult: valid, validateErr: services.ErrCodeAlreadyUsed}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newRewardHandler(tc.stub, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/redemptions/validate",
				strings.NewReader(`{"code":"FMC-abc-DEFGHIJKL"}`))
			rec := httptest.NewRecorder()
			h.ValidateCode(rec, req)

			// The verification flow always answers 200; validity is in the body.
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var body struct {
				Valid bool `json:"valid"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Valid != tc.wantValid {
				t.Errorf("valid: got %v, want %v", body.Valid, tc.wantValid)
			}
		})
	}
}

func TestValidateCode_EmptyBody(t *testing.T) {
	h := newRewardHandler(&stubRedeemer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/redemptions/validate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ValidateCode(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUseRedemption_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"not found", services.ErrRedemptionNotFound, http.StatusNotFound},
		{"already used", services.ErrCodeAlreadyUsed, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newRewardHandler(&stubRedeemer{markUsedErr: tc.err}, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/redemptions/x/use", nil)
			req.SetPathValue("id", uuid.NewString())
			rec := httptest.NewRecorder()
			h.UseRedemption(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestCreateReward(t *testing.T) {
	cat := &stubCatalog{}
	h := newRewardHandler(&stubRedeemer{}, cat)

	body := `{"title":"Transit pass","description":"One-day pass","cost":30,"inventory_count":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rewards", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateReward(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(cat.created) != 1 {
		t.Fatalf("created rewards: got %d, want 1", len(cat.created))
	}
	created := cat.created[0]
	if !created.Available {
		t.Error("availability should default to true")
	}
	if created.InventoryCount == nil || *created.InventoryCount != 5 {
		t.Error("inventory_count not carried through")
	}

	// Rejections.
	for _, bad := range []string{`{`, `{"title":"","cost":10}`, `{"title":"x","cost":0}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/rewards", strings.NewReader(bad))
		rec := httptest.NewRecorder()
		h.CreateReward(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestListRewards(t *testing.T) {
	cat := &stubCatalog{rewards: []*models.Reward{
		{ID: uuid.New(), Title: "Transit pass", Cost: 30, Available: true},
	}}
	h := newRewardHandler(&stubRedeemer{}, cat)

	req := httptest.NewRequest(http.MethodGet, "/v1/rewards", nil)
	rec := httptest.NewRecorder()
	h.ListRewards(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []*models.Reward
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Transit pass" {
		t.Errorf("unexpected rewards: %+v", got)
	}
}
