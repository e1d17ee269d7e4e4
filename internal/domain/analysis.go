package domain

import (
	"time"
)

// Severity ranks how alarming a single risk factor is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityAlert    Severity = "ALERT"
	SeverityCritical Severity = "CRITICAL"
)

// severityRank orders severities for comparisons; higher is worse.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityAlert:    2,
	SeverityCritical: 3,
}

// AtLeast reports whether s ranks at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// RiskLevel buckets the final score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// levelRank orders risk levels; higher is worse.
var levelRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether l ranks at or above other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return levelRank[l] >= levelRank[other]
}

// ReviewStatus is the human-in-the-loop decision gate.
type ReviewStatus string

const (
	ReviewAutoApproved ReviewStatus = "AUTO_APPROVED"
	ReviewPending      ReviewStatus = "PENDING"
)

// RiskFactor is one evaluation outcome contributing to (or, in shadow
// mode, merely annotating) the analysis.
type RiskFactor struct {
	Category    string `json:"category"`
	RuleName    string `json:"ruleName"`
	Description string `json:"description"`

	// ScoreContribution may be negative (allowlist trust reduction).
	ScoreContribution int `json:"scoreContribution"`

	Severity Severity `json:"severity"`

	// IsShadow marks factors recorded for audit but excluded from the score.
	IsShadow bool `json:"isShadow"`

	// ContextData carries structured audit/debug detail; never scored.
	ContextData map[string]interface{} `json:"contextData,omitempty"`
}

// Factor categories used across evaluators and signal adapters.
const (
	CategoryRule         = "Rule"
	CategoryCompoundRule = "CompoundRule"
	CategoryWatchlist    = "Watchlist"
	CategoryRelationship = "Relationship"
	CategoryML           = "ML"
)

// RiskAnalysis is the engine's output: one explainable verdict per
// transaction. Append-only; review workflows mutate status elsewhere.
type RiskAnalysis struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	TransactionID string `json:"transactionId"`

	RiskScore    int          `json:"riskScore"` // 0..100
	RiskLevel    RiskLevel    `json:"riskLevel"`
	ReviewStatus ReviewStatus `json:"reviewStatus"`

	Explanation string       `json:"explanation"`
	Factors     []RiskFactor `json:"factors"`

	AnalyzedAt time.Time `json:"analyzedAt"`
}
