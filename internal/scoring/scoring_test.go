package scoring

import (
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func factor(points int, severity domain.Severity, shadow bool) domain.RiskFactor {
	return domain.RiskFactor{
		Category:          domain.CategoryRule,
		RuleName:          "test",
		Description:       "test factor",
		ScoreContribution: points,
		Severity:          severity,
		IsShadow:          shadow,
	}
}

func TestAggregate(t *testing.T) {
	t.Run("SumsAcrossStages", func(t *testing.T) {
		stages := &StagedFactors{
			Rules:        []domain.RiskFactor{factor(30, domain.SeverityCritical, false)},
			Compound:     []domain.RiskFactor{factor(20, domain.SeverityWarning, false)},
			Watchlist:    []domain.RiskFactor{factor(15, domain.SeverityWarning, false)},
			Relationship: []domain.RiskFactor{factor(25, domain.SeverityCritical, false)},
			ML:           []domain.RiskFactor{factor(5, domain.SeverityInfo, false)},
		}
		result := Aggregate(stages)
		if result.Score != 95 {
			t.Errorf("expected score 95, got %d", result.Score)
		}
		if len(result.Factors) != 5 {
			t.Errorf("expected 5 factors, got %d", len(result.Factors))
		}
	})

	t.Run("ClampsToUpperBound", func(t *testing.T) {
		stages := &StagedFactors{
			Rules: []domain.RiskFactor{
				factor(60, domain.SeverityCritical, false),
				factor(60, domain.SeverityCritical, false),
			},
		}
		if result := Aggregate(stages); result.Score != 100 {
			t.Errorf("expected clamp to 100, got %d", result.Score)
		}
	})

	t.Run("ClampsToLowerBound", func(t *testing.T) {
		// A large allowlist reduction cannot push the score negative.
		stages := &StagedFactors{
			Rules:     []domain.RiskFactor{factor(5, domain.SeverityInfo, false)},
			Watchlist: []domain.RiskFactor{factor(-40, domain.SeverityInfo, false)},
		}
		if result := Aggregate(stages); result.Score != 0 {
			t.Errorf("expected clamp to 0, got %d", result.Score)
		}
	})

	t.Run("ClampIsPerStage", func(t *testing.T) {
		// Overflow in an early stage is clamped before the next stage's
		// reduction applies, so the outcomes differ from a single final
		// clamp.
		stages := &StagedFactors{
			Rules:     []domain.RiskFactor{factor(150, domain.SeverityCritical, false)},
			Watchlist: []domain.RiskFactor{factor(-10, domain.SeverityInfo, false)},
		}
		if result := Aggregate(stages); result.Score != 90 {
			t.Errorf("expected 100-10=90 with per-stage clamping, got %d", result.Score)
		}
	})

	t.Run("ShadowFactorsNeverScore", func(t *testing.T) {
		active := &StagedFactors{
			Rules: []domain.RiskFactor{factor(10, domain.SeverityInfo, false)},
		}
		withShadow := &StagedFactors{
			Rules: []domain.RiskFactor{
				factor(10, domain.SeverityInfo, false),
				factor(30, domain.SeverityCritical, true),
			},
		}

		base := Aggregate(active)
		shadowed := Aggregate(withShadow)

		if shadowed.Score != base.Score {
			t.Errorf("shadow factor changed the score: %d vs %d", shadowed.Score, base.Score)
		}
		if shadowed.ShadowCount != 1 || shadowed.ShadowPoints != 30 {
			t.Errorf("expected shadow tally (1, 30), got (%d, %d)",
				shadowed.ShadowCount, shadowed.ShadowPoints)
		}
		// Shadow factors stay in the audit trail.
		if len(shadowed.Factors) != 2 {
			t.Errorf("expected shadow factor retained in list, got %d factors", len(shadowed.Factors))
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		result := Aggregate(&StagedFactors{})
		if result.Score != 0 {
			t.Errorf("expected score 0 for no factors, got %d", result.Score)
		}
	})
}

func TestClassify(t *testing.T) {
	thresholds := domain.DefaultThresholds()

	tests := []struct {
		score      int
		wantLevel  domain.RiskLevel
		wantStatus domain.ReviewStatus
	}{
		{0, domain.RiskLow, domain.ReviewAutoApproved},
		{25, domain.RiskLow, domain.ReviewAutoApproved},
		{26, domain.RiskMedium, domain.ReviewPending},
		{50, domain.RiskMedium, domain.ReviewPending},
		{51, domain.RiskHigh, domain.ReviewPending},
		{75, domain.RiskHigh, domain.ReviewPending},
		{76, domain.RiskCritical, domain.ReviewPending},
		{100, domain.RiskCritical, domain.ReviewPending},
	}

	for _, tt := range tests {
		level, status := Classify(tt.score, thresholds)
		if level != tt.wantLevel || status != tt.wantStatus {
			t.Errorf("Classify(%d) = (%s, %s), want (%s, %s)",
				tt.score, level, status, tt.wantLevel, tt.wantStatus)
		}
	}

	t.Run("TenantThresholds", func(t *testing.T) {
		strict := domain.ScoringThresholds{Low: 10, Medium: 20, High: 30, AutoApprove: 5}
		level, status := Classify(15, strict)
		if level != domain.RiskMedium {
			t.Errorf("expected MEDIUM under strict thresholds, got %s", level)
		}
		if status != domain.ReviewPending {
			t.Errorf("expected PENDING above auto-approve cutoff, got %s", status)
		}
	})
}

func TestExplain(t *testing.T) {
	t.Run("LowScoreNoFactors", func(t *testing.T) {
		got := Explain(0, domain.RiskLow, nil)
		want := "Risk Score: 0/100 (Low)."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("CriticalAndWarningSegments", func(t *testing.T) {
		factors := []domain.RiskFactor{
			{Description: "Corridor US->IR involves a high-risk country", Severity: domain.SeverityCritical, ScoreContribution: 35},
			{Description: "Amount 12000 meets or exceeds threshold 10000", Severity: domain.SeverityWarning, ScoreContribution: 30},
			{Description: "11 transactions from sender in the last 24 hours (limit 10)", Severity: domain.SeverityAlert, ScoreContribution: 25},
		}
		got := Explain(90, domain.RiskCritical, factors)
		want := "Risk Score: 90/100 (Critical)." +
			" CRITICAL: Corridor US->IR involves a high-risk country." +
			" Warnings: Amount 12000 meets or exceeds threshold 10000; 11 transactions from sender in the last 24 hours (limit 10)."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("InformationalCount", func(t *testing.T) {
		factors := []domain.RiskFactor{
			{Description: "Round amount 5000 (multiple of 1000)", Severity: domain.SeverityInfo, ScoreContribution: 5},
			{Description: "Transaction created at 02:30 UTC during unusual hours", Severity: domain.SeverityInfo, ScoreContribution: 10},
		}
		got := Explain(15, domain.RiskLow, factors)
		want := "Risk Score: 15/100 (Low). 2 informational signal(s) noted."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("ShadowFooter", func(t *testing.T) {
		factors := []domain.RiskFactor{
			{Description: "Amount 12000 meets or exceeds threshold 10000", Severity: domain.SeverityCritical, ScoreContribution: 30, IsShadow: true},
		}
		got := Explain(0, domain.RiskLow, factors)
		want := "Risk Score: 0/100 (Low). [Shadow mode: 1 rule(s) matched (+30 pts not scored).]"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("ShadowExcludedFromSegments", func(t *testing.T) {
		factors := []domain.RiskFactor{
			{Description: "active info", Severity: domain.SeverityInfo, ScoreContribution: 5},
			{Description: "shadow critical", Severity: domain.SeverityCritical, ScoreContribution: 40, IsShadow: true},
		}
		got := Explain(5, domain.RiskLow, factors)
		want := "Risk Score: 5/100 (Low). 1 informational signal(s) noted. [Shadow mode: 1 rule(s) matched (+40 pts not scored).]"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}
