package domain

import "context"

// WatchlistType identifies which list an entry matched against.
type WatchlistType string

const (
	ListBlocklist WatchlistType = "BLOCKLIST"
	ListWatchlist WatchlistType = "WATCHLIST"
	ListAllowlist WatchlistType = "ALLOWLIST"
)

// WatchlistHit is one match against a configured watchlist entry.
// The adapter owns the matching logic; the engine only consumes hits.
type WatchlistHit struct {
	ListType        WatchlistType `json:"listType"`
	FieldType       string        `json:"fieldType"`
	MatchedValue    string        `json:"matchedValue"`
	Notes           string        `json:"notes,omitempty"`
	ScoreAdjustment int           `json:"scoreAdjustment"`
}

// RelationshipPattern identifies a money-flow topology indicator.
type RelationshipPattern string

const (
	PatternFanOut    RelationshipPattern = "FAN_OUT"
	PatternFanIn     RelationshipPattern = "FAN_IN"
	PatternMuleRelay RelationshipPattern = "MULE_RELAY"
)

// RelationshipHit is one detected relationship-graph pattern.
type RelationshipHit struct {
	PatternType     RelationshipPattern `json:"patternType"`
	Actor           string              `json:"actor"`
	Description     string              `json:"description"`
	ScoreAdjustment int                 `json:"scoreAdjustment"`
}

// MLPrediction is the model's fraud probability for one transaction.
type MLPrediction struct {
	FraudProbability  float64  `json:"fraudProbability"` // 0..1
	ScoreContribution int      `json:"scoreContribution"`
	TopFeatures       []string `json:"topFeatures,omitempty"`
	ModelVersion      string   `json:"modelVersion"`
}

// WatchlistAdapter checks a transaction's parties against configured
// watchlist entries.
type WatchlistAdapter interface {
	Check(ctx context.Context, tx *Transaction) ([]WatchlistHit, error)
}

// RelationshipAdapter surfaces fan-out/fan-in/mule-relay patterns around
// the transaction's parties.
type RelationshipAdapter interface {
	Check(ctx context.Context, tx *Transaction) ([]RelationshipHit, error)
}

// MLAdapter scores a transaction against the tenant's trained model.
// Returns nil prediction (no error) when no model exists for the tenant.
type MLAdapter interface {
	Score(ctx context.Context, tx *Transaction, profile *CustomerProfile) (*MLPrediction, error)
}
