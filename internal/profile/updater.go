// Package profile folds scored transactions into per-customer rolling
// aggregates and recomputes the customer's risk tier.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/metrics"
	"github.com/shopspring/decimal"
)

// maxSaveRetries bounds the optimistic-concurrency retry loop. Two
// concurrent scorings of the same customer conflict on the version
// token; the loser re-reads and re-applies its increment.
const maxSaveRetries = 3

// Updater applies post-analysis profile updates.
type Updater struct {
	store domain.ProfileStore
}

// NewUpdater creates a profile updater over the given store.
func NewUpdater(store domain.ProfileStore) *Updater {
	return &Updater{store: store}
}

// Apply folds one scored transaction into the sender's profile and
// persists it, retrying on version conflicts.
func (u *Updater) Apply(ctx context.Context, tx *domain.Transaction, level domain.RiskLevel) (*domain.CustomerProfile, error) {
	var lastErr error

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		p, err := u.store.GetOrCreateProfile(ctx, tx.TenantID, tx.SenderID)
		if err != nil {
			return nil, fmt.Errorf("load profile for %s: %w", tx.SenderID, err)
		}

		Fold(p, tx, level)

		if err := u.store.SaveProfile(ctx, p); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				metrics.ProfileConflicts.Inc()
				slog.Debug("profile save conflict, retrying",
					"customer_id", tx.SenderID,
					"attempt", attempt+1,
				)
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("save profile for %s: %w", tx.SenderID, err)
		}

		return p, nil
	}

	return nil, fmt.Errorf("profile update for %s exhausted %d retries: %w", tx.SenderID, maxSaveRetries, lastErr)
}

// Fold applies one transaction's aggregates to the profile in place.
// Flagged count increments only when the analysis rose above Low risk.
func Fold(p *domain.CustomerProfile, tx *domain.Transaction, level domain.RiskLevel) {
	p.TotalTransactions++
	p.TotalVolume = p.TotalVolume.Add(tx.Amount)
	p.AverageTransactionAmount = p.TotalVolume.DivRound(decimal.NewFromInt(p.TotalTransactions), 8)

	if tx.Amount.GreaterThan(p.MaxTransactionAmount) {
		p.MaxTransactionAmount = tx.Amount
	}

	at := tx.CreatedAt.UTC()
	if p.FirstTransactionAt == nil {
		p.FirstTransactionAt = &at
	}
	p.LastTransactionAt = &at

	if level.AtLeast(domain.RiskMedium) {
		p.FlaggedTransactionCount++
	}

	p.RiskTier = p.ComputeRiskTier()
	p.UpdatedAt = at
}
