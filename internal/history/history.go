// Package history provides windowed transaction-history lookups for
// velocity rules and relationship detection.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/shopspring/decimal"
)

// Service reads recent-transaction aggregates from the repository.
// Implements domain.HistoryReader.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a history service. The cache is optional; when
// present it short-circuits repeated counter lookups.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// CountRecent returns the number of transactions by a sender in
// [since, until). Future transactions never count.
func (s *Service) CountRecent(ctx context.Context, tenantID, senderID string, since, until time.Time) (int64, error) {
	if tenantID == "" || senderID == "" {
		return 0, fmt.Errorf("%w: tenantID and senderID are required", domain.ErrInvalidInput)
	}

	count, err := s.repo.CountTransactionsBySender(ctx, tenantID, senderID, since, until)
	if err != nil {
		return 0, fmt.Errorf("count transactions for %s: %w", senderID, err)
	}
	return count, nil
}

// SumRecent returns the summed amount of transactions by a sender in
// [since, until).
func (s *Service) SumRecent(ctx context.Context, tenantID, senderID string, since, until time.Time) (decimal.Decimal, error) {
	if tenantID == "" || senderID == "" {
		return decimal.Zero, fmt.Errorf("%w: tenantID and senderID are required", domain.ErrInvalidInput)
	}

	sum, err := s.repo.SumTransactionsBySender(ctx, tenantID, senderID, since, until)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions for %s: %w", senderID, err)
	}
	return sum, nil
}

// Observe bumps the cached velocity counter for a sender. Best-effort:
// cache failures are ignored, the repository remains authoritative.
func (s *Service) Observe(ctx context.Context, tenantID, senderID string, window time.Duration) {
	if s.cache == nil {
		return
	}
	key := domain.CacheKeyVelocityPrefix + senderID
	_, _ = s.cache.IncrementCounter(ctx, tenantID, key, window)
}
