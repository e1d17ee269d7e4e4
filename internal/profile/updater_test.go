package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/talon/internal/domain"
)

// memStore is an in-memory ProfileStore that can inject version
// conflicts on the first N saves.
type memStore struct {
	profiles  map[string]*domain.CustomerProfile
	conflicts int
	saves     int
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]*domain.CustomerProfile)}
}

func (s *memStore) GetOrCreateProfile(ctx context.Context, tenantID, customerID string) (*domain.CustomerProfile, error) {
	key := tenantID + "/" + customerID
	if p, ok := s.profiles[key]; ok {
		copied := *p
		return &copied, nil
	}
	p := domain.NewCustomerProfile(tenantID, customerID)
	s.profiles[key] = p
	copied := *p
	return &copied, nil
}

func (s *memStore) SaveProfile(ctx context.Context, p *domain.CustomerProfile) error {
	s.saves++
	if s.failWith != nil {
		return s.failWith
	}
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrVersionConflict
	}
	p.Version++
	copied := *p
	s.profiles[p.TenantID+"/"+p.CustomerID] = &copied
	return nil
}

func tx(amount string) *domain.Transaction {
	return &domain.Transaction{
		ID:       "tx-001",
		TenantID: "tenant-001",
		SenderID: "cust-001",
		Amount:   decimal.RequireFromString(amount),
		CreatedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestFold(t *testing.T) {
	p := domain.NewCustomerProfile("tenant-001", "cust-001")

	Fold(p, tx("100"), domain.RiskLow)
	Fold(p, tx("200"), domain.RiskMedium)
	Fold(p, tx("50"), domain.RiskHigh)

	if p.TotalTransactions != 3 {
		t.Errorf("expected 3 transactions, got %d", p.TotalTransactions)
	}
	if !p.TotalVolume.Equal(decimal.RequireFromString("350")) {
		t.Errorf("expected volume 350, got %s", p.TotalVolume)
	}
	wantAvg := decimal.RequireFromString("350").DivRound(decimal.NewFromInt(3), 8)
	if !p.AverageTransactionAmount.Equal(wantAvg) {
		t.Errorf("expected average %s, got %s", wantAvg, p.AverageTransactionAmount)
	}
	if !p.MaxTransactionAmount.Equal(decimal.RequireFromString("200")) {
		t.Errorf("expected max 200, got %s", p.MaxTransactionAmount)
	}
	// Low does not flag; Medium and High do.
	if p.FlaggedTransactionCount != 2 {
		t.Errorf("expected 2 flagged, got %d", p.FlaggedTransactionCount)
	}
	if p.FirstTransactionAt == nil || p.LastTransactionAt == nil {
		t.Fatal("expected first/last timestamps to be set")
	}
}

func TestFoldMaxNeverDecreases(t *testing.T) {
	p := domain.NewCustomerProfile("tenant-001", "cust-001")
	Fold(p, tx("500"), domain.RiskLow)
	Fold(p, tx("100"), domain.RiskLow)
	if !p.MaxTransactionAmount.Equal(decimal.RequireFromString("500")) {
		t.Errorf("max should stay at 500, got %s", p.MaxTransactionAmount)
	}
}

func TestComputeRiskTier(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		flagged  int64
		rejected int64
		want     domain.RiskTier
	}{
		{"TooShallow", 4, 4, 0, domain.TierUnknown},
		{"CleanHistory", 10, 0, 0, domain.TierTrusted},
		{"AtTenPercent", 10, 1, 0, domain.TierTrusted},
		{"AboveTenPercent", 10, 2, 0, domain.TierStandard},
		{"AboveThirtyPercent", 10, 4, 0, domain.TierElevated},
		{"AboveHalfFlagged", 10, 6, 0, domain.TierHighRisk},
		{"RejectsDriveElevated", 10, 0, 2, domain.TierElevated},
		{"RejectsDriveHighRisk", 10, 0, 3, domain.TierHighRisk},
		{"FiveOfThreeFlagged", 5, 3, 0, domain.TierHighRisk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.CustomerProfile{
				TotalTransactions:        tt.total,
				FlaggedTransactionCount:  tt.flagged,
				RejectedTransactionCount: tt.rejected,
			}
			if got := p.ComputeRiskTier(); got != tt.want {
				t.Errorf("tier = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyRetriesOnConflict(t *testing.T) {
	store := newMemStore()
	store.conflicts = 2 // first two saves conflict

	u := NewUpdater(store)
	p, err := u.Apply(context.Background(), tx("100"), domain.RiskLow)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if store.saves != 3 {
		t.Errorf("expected 3 save attempts, got %d", store.saves)
	}
	if p.TotalTransactions != 1 {
		t.Errorf("expected single increment despite retries, got %d", p.TotalTransactions)
	}
}

func TestApplyExhaustsRetries(t *testing.T) {
	store := newMemStore()
	store.conflicts = 10 // more than maxSaveRetries

	u := NewUpdater(store)
	if _, err := u.Apply(context.Background(), tx("100"), domain.RiskLow); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if store.saves != maxSaveRetries {
		t.Errorf("expected %d save attempts, got %d", maxSaveRetries, store.saves)
	}
}

func TestApplyHardSaveErrorDoesNotRetry(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("disk full")

	u := NewUpdater(store)
	if _, err := u.Apply(context.Background(), tx("100"), domain.RiskLow); err == nil {
		t.Fatal("expected error on hard save failure")
	}
	if store.saves != 1 {
		t.Errorf("non-conflict errors must not retry, got %d attempts", store.saves)
	}
}
