package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskTier classifies a customer's long-run behavior.
type RiskTier string

const (
	TierUnknown  RiskTier = "UNKNOWN"
	TierTrusted  RiskTier = "TRUSTED"
	TierStandard RiskTier = "STANDARD"
	TierElevated RiskTier = "ELEVATED"
	TierHighRisk RiskTier = "HIGH_RISK"
)

// MinTransactionsForTier is the history depth below which the tier stays Unknown.
const MinTransactionsForTier = 5

// CustomerProfile holds rolling per-customer aggregates that feed back
// into future scoring decisions. One row per tenant+customer.
type CustomerProfile struct {
	CustomerID string `json:"customerId"`
	TenantID   string `json:"tenantId"`

	TotalTransactions        int64           `json:"totalTransactions"`
	TotalVolume              decimal.Decimal `json:"totalVolume"`
	AverageTransactionAmount decimal.Decimal `json:"averageTransactionAmount"`
	MaxTransactionAmount     decimal.Decimal `json:"maxTransactionAmount"`

	FlaggedTransactionCount  int64 `json:"flaggedTransactionCount"`
	RejectedTransactionCount int64 `json:"rejectedTransactionCount"`

	FirstTransactionAt *time.Time `json:"firstTransactionAt,omitempty"`
	LastTransactionAt  *time.Time `json:"lastTransactionAt,omitempty"`

	RiskTier RiskTier `json:"riskTier"`

	// Version is the optimistic-concurrency token; Save fails with
	// ErrVersionConflict when the stored version differs.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewCustomerProfile returns a zero-history profile for first sight of a customer.
func NewCustomerProfile(tenantID, customerID string) *CustomerProfile {
	now := time.Now().UTC()
	return &CustomerProfile{
		CustomerID:               customerID,
		TenantID:                 tenantID,
		TotalVolume:              decimal.Zero,
		AverageTransactionAmount: decimal.Zero,
		MaxTransactionAmount:     decimal.Zero,
		RiskTier:                 TierUnknown,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// ComputeRiskTier derives the tier purely from the profile counters.
// Stays Unknown while the history is too shallow to judge.
func (p *CustomerProfile) ComputeRiskTier() RiskTier {
	if p.TotalTransactions < MinTransactionsForTier {
		return TierUnknown
	}

	total := float64(p.TotalTransactions)
	flagRate := float64(p.FlaggedTransactionCount) / total
	rejectRate := float64(p.RejectedTransactionCount) / total

	switch {
	case flagRate > 0.5 || rejectRate > 0.2:
		return TierHighRisk
	case flagRate > 0.3 || rejectRate > 0.1:
		return TierElevated
	case flagRate > 0.1:
		return TierStandard
	default:
		return TierTrusted
	}
}
