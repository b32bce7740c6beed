package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixamincity/backend/internal/models"
	"github.com/fixamincity/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory mocks for RedemptionRewardRepo and RedemptionStore.
// ---------------------------------------------------------------------------

type mockRewards struct {
	mu            sync.Mutex
	rewards       map[uuid.UUID]*models.Reward
	failDecrement bool
}

func newMockRewards(rewards ...*models.Reward) *mockRewards {
	m := &mockRewards{rewards: make(map[uuid.UUID]*models.Reward)}
	for _, r := range rewards {
		cp := *r
		if r.InventoryCount != nil {
			n := *r.InventoryCount
			cp.InventoryCount = &n
		}
		m.rewards[r.ID] = &cp
	}
	return m
}

func (m *mockRewards) GetByID(_ context.Context, id uuid.UUID) (*models.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rewards[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	if r.InventoryCount != nil {
		n := *r.InventoryCount
		cp.InventoryCount = &n
	}
	return &cp, nil
}

func (m *mockRewards) DecrementInventory(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDecrement {
		return errors.New("decrement failed")
	}
	r, ok := m.rewards[id]
	if !ok || r.InventoryCount == nil || *r.InventoryCount <= 0 {
		return repository.ErrNoStock
	}
	*r.InventoryCount--
	return nil
}

func (m *mockRewards) inventory(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rewards[id].InventoryCount
}

// ---

type mockRedemptions struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.Redemption
}

func newMockRedemptions() *mockRedemptions {
	return &mockRedemptions{records: make(map[uuid.UUID]*models.Redemption)}
}

func (m *mockRedemptions) CreateTx(_ context.Context, _ pgx.Tx, red *models.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *red
	m.records[red.ID] = &cp
	return nil
}

func (m *mockRedemptions) GetByID(_ context.Context, id uuid.UUID) (*models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	red, ok := m.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *red
	return &cp, nil
}

func (m *mockRedemptions) GetByCode(_ context.Context, code string) (*models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, red := range m.records {
		if red.Code == code {
			cp := *red
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRedemptions) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Redemption
	for _, red := range m.records {
		if red.UserID == userID {
			cp := *red
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRedemptions) MarkUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	red, ok := m.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if red.Used {
		return repository.ErrAlreadyUsed
	}
	red.Used = true
	return nil
}

func (m *mockRedemptions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func intPtr(n int) *int { return &n }

func newRedemptionFixture(balance int, reward *models.Reward) (*RedemptionEngine, *mockUsers, *mockLedger, *mockRewards, *mockRedemptions, uuid.UUID) {
	users := newMockUsers()
	ledger := &mockLedger{}
	user := seedUser(users, balance)
	rewards := newMockRewards(reward)
	store := newMockRedemptions()
	points := newTestEngine(users, ledger, newMockIssueStore())
	eng := NewRedemptionEngine(mockPool{}, rewards, store, points, testLogger())
	return eng, users, ledger, rewards, store, user
}

var codePattern = regexp.MustCompile(`^FMC-[0-9a-z]+-[0-9A-Z]{9}$`)

// ---------------------------------------------------------------------------
// 1. Redeem
// ---------------------------------------------------------------------------

func TestRedeemHappyPath(t *testing.T) {
	reward := &models.Reward{ID: uuid.New(), Title: "Transit pass", Cost: 30, Available: true, InventoryCount: intPtr(1)}
	eng, users, ledger, rewards, store, user := newRedemptionFixture(50, reward)
	ctx := context.Background()

	res, err := eng.Redeem(ctx, user, reward.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if got := users.balance(user); got != 20 {
		t.Errorf("balance: got %d, want 20", got)
	}
	if got := rewards.inventory(reward.ID); got != 0 {
		t.Errorf("inventory: got %d, want 0", got)
	}

	deductions := ledger.byAction(models.ActionRewardRedemption)
	if len(deductions) != 1 {
		t.Fatalf("redemption ledger entries: got %d, want 1", len(deductions))
	}
	if deductions[0].Value != -30 {
		t.Errorf("ledger value: got %d, want -30", deductions[0].Value)
	}
	if deductions[0].RewardID == nil || *deductions[0].RewardID != reward.ID {
		t.Error("ledger entry should reference the reward")
	}

	red, err := store.GetByID(ctx, res.RedemptionID)
	if err != nil {
		t.Fatalf("redemption record missing: %v", err)
	}
	if red.Used {
		t.Error("fresh redemption must not be marked used")
	}
	if !codePattern.MatchString(red.Code) {
		t.Errorf("code %q does not match expected shape", red.Code)
	}
	if res.Code != red.Code {
		t.Errorf("result code %q differs from stored code %q", res.Code, red.Code)
	}
	if res.InventoryWarning != "" {
		t.Errorf("unexpected inventory warning: %q", res.InventoryWarning)
	}
}

func TestRedeemFailuresLeaveNoTrace(t *testing.T) {
	unavailable := &models.Reward{ID: uuid.New(), Cost: 10, Available: false}
	outOfStock := &models.Reward{ID: uuid.New(), Cost: 10, Available: true, InventoryCount: intPtr(0)}
	affordable := &models.Reward{ID: uuid.New(), Cost: 100, Available: true}

	users := newMockUsers()
	ledger := &mockLedger{}
	user := seedUser(users, 50)
	rewards := newMockRewards(unavailable, outOfStock, affordable)
	store := newMockRedemptions()
	points := newTestEngine(users, ledger, newMockIssueStore())
	eng := NewRedemptionEngine(mockPool{}, rewards, store, points, testLogger())
	ctx := context.Background()

	cases := []struct {
		name     string
		rewardID uuid.UUID
		want     error
	}{
		{"unknown reward", uuid.New(), ErrRewardNotFound},
		{"unavailable", unavailable.ID, ErrRewardUnavailable},
		{"out of stock", outOfStock.ID, ErrOutOfStock},
		{"insufficient funds", affordable.ID, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		if _, err := eng.Redeem(ctx, user, tc.rewardID); err != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	if got := users.balance(user); got != 50 {
		t.Errorf("balance must be untouched: got %d, want 50", got)
	}
	if n := ledger.count(); n != 0 {
		t.Errorf("ledger entries: got %d, want 0", n)
	}
	if n := store.count(); n != 0 {
		t.Errorf("redemption records: got %d, want 0", n)
	}
}

// Inventory decrement failure downgrades to a warning: the user already paid,
// so the redemption must stand.
func TestRedeemInventoryFailureIsWarning(t *testing.T) {
	reward := &models.Reward{ID: uuid.New(), Cost: 30, Available: true, InventoryCount: intPtr(5)}
	eng, users, _, rewards, store, user := newRedemptionFixture(50, reward)
	rewards.failDecrement = true

	res, err := eng.Redeem(context.Background(), user, reward.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if res.InventoryWarning == "" {
		t.Error("expected an inventory warning")
	}
	if got := users.balance(user); got != 20 {
		t.Errorf("balance: got %d, want 20", got)
	}
	if n := store.count(); n != 1 {
		t.Errorf("redemption records: got %d, want 1", n)
	}
}

func TestRedeemUnlimitedInventorySkipsDecrement(t *testing.T) {
	reward := &models.Reward{ID: uuid.New(), Cost: 10, Available: true} // nil inventory
	eng, _, _, rewards, _, user := newRedemptionFixture(50, reward)
	rewards.failDecrement = true // would warn if the decrement were attempted

	res, err := eng.Redeem(context.Background(), user, reward.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if res.InventoryWarning != "" {
		t.Errorf("unlimited reward must not touch inventory, got warning %q", res.InventoryWarning)
	}
}

// ---------------------------------------------------------------------------
// 2. Code validation and use
// ---------------------------------------------------------------------------

func TestValidateCode(t *testing.T) {
	reward := &models.Reward{ID: uuid.New(), Cost: 10, Available: true}
	eng, _, _, _, _, user := newRedemptionFixture(50, reward)
	ctx := context.Background()

	res, err := eng.Redeem(ctx, user, reward.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	red, err := eng.ValidateCode(ctx, "  "+res.Code+" ")
	if err != nil {
		t.Fatalf("ValidateCode should trim whitespace: %v", err)
	}
	if red.ID != res.RedemptionID {
		t.Error("validated redemption should match the issued one")
	}

	if _, err := eng.ValidateCode(ctx, "FMC-nope-NOPE"); err != ErrRedemptionNotFound {
		t.Errorf("unknown code: got %v, want ErrRedemptionNotFound", err)
	}

	if err := eng.MarkUsed(ctx, res.RedemptionID); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	if _, err := eng.ValidateCode(ctx, res.Code); err != ErrCodeAlreadyUsed {
		t.Errorf("used code: got %v, want ErrCodeAlreadyUsed", err)
	}
}

func TestMarkUsedExactlyOnce(t *testing.T) {
	reward := &models.Reward{ID: uuid.New(), Cost: 10, Available: true}
	eng, _, _, _, _, user := newRedemptionFixture(50, reward)
	ctx := context.Background()

	res, err := eng.Redeem(ctx, user, reward.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if err := eng.MarkUsed(ctx, res.RedemptionID); err != nil {
		t.Fatalf("first MarkUsed: %v", err)
	}
	if err := eng.MarkUsed(ctx, res.RedemptionID); err != ErrCodeAlreadyUsed {
		t.Errorf("second MarkUsed: got %v, want ErrCodeAlreadyUsed", err)
	}
	if err := eng.MarkUsed(ctx, uuid.New()); err != ErrRedemptionNotFound {
		t.Errorf("unknown redemption: got %v, want ErrRedemptionNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// 3. Code shape
// ---------------------------------------------------------------------------

func TestNewRedemptionCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewRedemptionCode()
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match expected shape", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code generated: %q", code)
		}
		seen[code] = true
	}
}
