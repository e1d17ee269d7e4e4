package signals

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/talon/internal/domain"
)

// Watchlist entry field types and the transaction fields they match.
const (
	WatchFieldCustomerID = "customer_id"
	WatchFieldCountry    = "country"
	WatchFieldCurrency   = "currency"
)

// RepositoryWatchlist matches transactions against watchlist entries
// stored in the repository. Matching is exact, case-insensitive.
type RepositoryWatchlist struct {
	repo domain.Repository
}

// NewRepositoryWatchlist creates a repository-backed watchlist adapter.
func NewRepositoryWatchlist(repo domain.Repository) *RepositoryWatchlist {
	return &RepositoryWatchlist{repo: repo}
}

// Check implements domain.WatchlistAdapter.
func (w *RepositoryWatchlist) Check(ctx context.Context, tx *domain.Transaction) ([]domain.WatchlistHit, error) {
	entries, err := w.repo.ListWatchlistEntries(ctx, tx.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load watchlist entries: %w", err)
	}

	var hits []domain.WatchlistHit
	for _, entry := range entries {
		if !entry.Active {
			continue
		}

		matched, value := matchEntry(entry, tx)
		if !matched {
			continue
		}

		adjustment := entry.ScoreAdjustment
		if adjustment == 0 {
			adjustment = DefaultAdjustment(entry.ListType)
		}

		hits = append(hits, domain.WatchlistHit{
			ListType:        entry.ListType,
			FieldType:       entry.FieldType,
			MatchedValue:    value,
			Notes:           entry.Notes,
			ScoreAdjustment: adjustment,
		})
	}

	return hits, nil
}

func matchEntry(entry *domain.WatchlistEntry, tx *domain.Transaction) (bool, string) {
	target := strings.ToLower(entry.Value)

	switch entry.FieldType {
	case WatchFieldCustomerID:
		if strings.EqualFold(tx.SenderID, entry.Value) {
			return true, tx.SenderID
		}
		if tx.ReceiverID != "" && strings.EqualFold(tx.ReceiverID, entry.Value) {
			return true, tx.ReceiverID
		}
	case WatchFieldCountry:
		if strings.ToLower(tx.SourceCountry) == target {
			return true, tx.SourceCountry
		}
		if strings.ToLower(tx.DestinationCountry) == target {
			return true, tx.DestinationCountry
		}
	case WatchFieldCurrency:
		if strings.ToLower(tx.SourceCurrency) == target {
			return true, tx.SourceCurrency
		}
		if strings.ToLower(tx.DestinationCurrency) == target {
			return true, tx.DestinationCurrency
		}
	}

	return false, ""
}
