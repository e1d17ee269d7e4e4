// Package domain defines the core types and interfaces for Talon.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	CountTransactionsBySender(ctx context.Context, tenantID, senderID string, since, until time.Time) (int64, error)
	SumTransactionsBySender(ctx context.Context, tenantID, senderID string, since, until time.Time) (decimal.Decimal, error)
	CountDistinctReceivers(ctx context.Context, tenantID, senderID string, since time.Time) (int64, error)
	CountDistinctSenders(ctx context.Context, tenantID, receiverID string, since time.Time) (int64, error)
	SumTransactionsByReceiver(ctx context.Context, tenantID, receiverID string, since time.Time) (decimal.Decimal, error)

	// Rule configuration operations
	SaveRule(ctx context.Context, rule *RiskRule) error
	ListRules(ctx context.Context, tenantID string) ([]*RiskRule, error)
	SaveRuleGroup(ctx context.Context, group *RuleGroup) error
	ListRuleGroups(ctx context.Context, tenantID string) ([]*RuleGroup, error)

	// Customer profiles (versioned for optimistic concurrency)
	GetOrCreateProfile(ctx context.Context, tenantID, customerID string) (*CustomerProfile, error)
	SaveProfile(ctx context.Context, profile *CustomerProfile) error

	// Risk analyses (append-only)
	SaveAnalysis(ctx context.Context, analysis *RiskAnalysis) error
	GetAnalysis(ctx context.Context, tenantID, analysisID string) (*RiskAnalysis, error)
	GetAnalysisByTransaction(ctx context.Context, tenantID, txID string) (*RiskAnalysis, error)

	// Watchlist entries consumed by the watchlist adapter
	ListWatchlistEntries(ctx context.Context, tenantID string) ([]*WatchlistEntry, error)
	SaveWatchlistEntry(ctx context.Context, entry *WatchlistEntry) error

	// Tenant settings (scoring thresholds, high-risk countries)
	GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
	SaveTenantSettings(ctx context.Context, settings *TenantSettings) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// WatchlistEntry is one configured list entry the watchlist adapter
// matches transactions against.
type WatchlistEntry struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenantId"`
	ListType  WatchlistType `json:"listType"`
	FieldType string        `json:"fieldType"` // "customer_id", "account", "country"
	Value     string        `json:"value"`
	Notes     string        `json:"notes,omitempty"`

	// ScoreAdjustment overrides the list-type default when non-zero.
	ScoreAdjustment int `json:"scoreAdjustment,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// RuleProvider supplies the resolved rule catalog for a tenant.
type RuleProvider interface {
	LoadRules(ctx context.Context, tenantID string) ([]*RiskRule, []*RuleGroup, error)
}

// HistoryReader exposes the windowed lookups velocity rules depend on.
type HistoryReader interface {
	CountRecent(ctx context.Context, tenantID, senderID string, since, until time.Time) (int64, error)
	SumRecent(ctx context.Context, tenantID, senderID string, since, until time.Time) (decimal.Decimal, error)
}

// ProfileStore persists per-customer rolling aggregates.
type ProfileStore interface {
	GetOrCreateProfile(ctx context.Context, tenantID, customerID string) (*CustomerProfile, error)
	SaveProfile(ctx context.Context, profile *CustomerProfile) error
}

// AnalysisStore appends completed analyses; an analysis is either fully
// saved or not saved at all.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, analysis *RiskAnalysis) error
}

// Notifier delivers best-effort high-risk notifications after
// persistence. Failures must never affect the scoring result.
type Notifier interface {
	OnHighRisk(ctx context.Context, analysis *RiskAnalysis)
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
