// Package signals integrates the external risk signal sources:
// watchlist matches, relationship-graph hits and the ML probability.
// Each source fails in isolation; a dead signal degrades the analysis
// to the remaining sources instead of blocking it.
package signals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/metrics"
)

// Default score adjustments per watchlist type, used when the matched
// entry carries no override.
const (
	BlocklistAdjustment = 35
	WatchlistAdjustment = 15
	AllowlistAdjustment = -10
)

// ML contribution severity breakpoints.
const (
	mlCriticalContribution = 30
	mlWarningContribution  = 15
)

// watchlistSeverity is the fixed list-type to severity mapping.
var watchlistSeverity = map[domain.WatchlistType]domain.Severity{
	domain.ListBlocklist: domain.SeverityCritical,
	domain.ListWatchlist: domain.SeverityWarning,
	domain.ListAllowlist: domain.SeverityInfo,
}

// relationshipSeverity is the fixed pattern to severity mapping.
var relationshipSeverity = map[domain.RelationshipPattern]domain.Severity{
	domain.PatternFanOut:    domain.SeverityCritical,
	domain.PatternFanIn:     domain.SeverityWarning,
	domain.PatternMuleRelay: domain.SeverityAlert,
}

// Collector consults the three signal adapters for one transaction and
// converts their hits into risk factors.
type Collector struct {
	watchlist    domain.WatchlistAdapter
	relationship domain.RelationshipAdapter
	ml           domain.MLAdapter
}

// NewCollector creates a signal collector. Any adapter may be nil, in
// which case its signal contributes nothing.
func NewCollector(watchlist domain.WatchlistAdapter, relationship domain.RelationshipAdapter, ml domain.MLAdapter) *Collector {
	return &Collector{
		watchlist:    watchlist,
		relationship: relationship,
		ml:           ml,
	}
}

// Watchlist returns watchlist factors for the transaction. Adapter
// failure is logged and yields zero factors.
func (c *Collector) Watchlist(ctx context.Context, tx *domain.Transaction) []domain.RiskFactor {
	if c.watchlist == nil {
		return nil
	}

	hits, err := c.watchlist.Check(ctx, tx)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues("watchlist").Inc()
		slog.Warn("watchlist adapter failed, continuing without signal",
			"tx_id", tx.ID,
			"error", err,
		)
		return nil
	}

	factors := make([]domain.RiskFactor, 0, len(hits))
	for _, hit := range hits {
		factors = append(factors, watchlistFactor(hit))
	}
	return factors
}

// Relationship returns relationship-graph factors for the transaction.
// Adapter failure is logged and yields zero factors.
func (c *Collector) Relationship(ctx context.Context, tx *domain.Transaction) []domain.RiskFactor {
	if c.relationship == nil {
		return nil
	}

	hits, err := c.relationship.Check(ctx, tx)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues("relationship").Inc()
		slog.Warn("relationship adapter failed, continuing without signal",
			"tx_id", tx.ID,
			"error", err,
		)
		return nil
	}

	factors := make([]domain.RiskFactor, 0, len(hits))
	for _, hit := range hits {
		factors = append(factors, relationshipFactor(hit))
	}
	return factors
}

// ML returns the ML factor for the transaction, or none when no model
// exists for the tenant or the adapter fails.
func (c *Collector) ML(ctx context.Context, tx *domain.Transaction, profile *domain.CustomerProfile) []domain.RiskFactor {
	if c.ml == nil {
		return nil
	}

	prediction, err := c.ml.Score(ctx, tx, profile)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues("ml").Inc()
		slog.Warn("ml adapter failed, continuing without signal",
			"tx_id", tx.ID,
			"error", err,
		)
		return nil
	}
	if prediction == nil {
		return nil
	}

	return []domain.RiskFactor{mlFactor(prediction)}
}

func watchlistFactor(hit domain.WatchlistHit) domain.RiskFactor {
	severity, ok := watchlistSeverity[hit.ListType]
	if !ok {
		severity = domain.SeverityWarning
	}

	description := fmt.Sprintf("%s match on %s: %s", listTypeLabel(hit.ListType), hit.FieldType, hit.MatchedValue)
	if hit.Notes != "" {
		description += " (" + hit.Notes + ")"
	}

	return domain.RiskFactor{
		Category:          domain.CategoryWatchlist,
		RuleName:          listTypeLabel(hit.ListType) + " screening",
		Description:       description,
		ScoreContribution: hit.ScoreAdjustment,
		Severity:          severity,
		ContextData: map[string]interface{}{
			"list_type":     string(hit.ListType),
			"field_type":    hit.FieldType,
			"matched_value": hit.MatchedValue,
		},
	}
}

func relationshipFactor(hit domain.RelationshipHit) domain.RiskFactor {
	severity, ok := relationshipSeverity[hit.PatternType]
	if !ok {
		severity = domain.SeverityWarning
	}

	return domain.RiskFactor{
		Category:          domain.CategoryRelationship,
		RuleName:          string(hit.PatternType),
		Description:       hit.Description,
		ScoreContribution: hit.ScoreAdjustment,
		Severity:          severity,
		ContextData: map[string]interface{}{
			"pattern_type": string(hit.PatternType),
			"actor":        hit.Actor,
		},
	}
}

func mlFactor(p *domain.MLPrediction) domain.RiskFactor {
	severity := domain.SeverityInfo
	switch {
	case p.ScoreContribution >= mlCriticalContribution:
		severity = domain.SeverityCritical
	case p.ScoreContribution >= mlWarningContribution:
		severity = domain.SeverityWarning
	}

	return domain.RiskFactor{
		Category:          domain.CategoryML,
		RuleName:          "Fraud model " + p.ModelVersion,
		Description:       fmt.Sprintf("Model fraud probability %.0f%%", p.FraudProbability*100),
		ScoreContribution: p.ScoreContribution,
		Severity:          severity,
		ContextData: map[string]interface{}{
			"fraud_probability": p.FraudProbability,
			"model_version":     p.ModelVersion,
			"top_features":      p.TopFeatures,
		},
	}
}

func listTypeLabel(t domain.WatchlistType) string {
	switch t {
	case domain.ListBlocklist:
		return "Blocklist"
	case domain.ListWatchlist:
		return "Watchlist"
	case domain.ListAllowlist:
		return "Allowlist"
	default:
		return string(t)
	}
}

// DefaultAdjustment returns the standard score adjustment for a list
// type, used when an entry does not override it.
func DefaultAdjustment(t domain.WatchlistType) int {
	switch t {
	case domain.ListBlocklist:
		return BlocklistAdjustment
	case domain.ListWatchlist:
		return WatchlistAdjustment
	case domain.ListAllowlist:
		return AllowlistAdjustment
	default:
		return 0
	}
}
