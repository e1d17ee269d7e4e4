package scoring

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// Classify maps a final clamped score to its risk level and review
// decision using the tenant's thresholds.
func Classify(score int, thresholds domain.ScoringThresholds) (domain.RiskLevel, domain.ReviewStatus) {
	var level domain.RiskLevel
	switch {
	case score <= thresholds.Low:
		level = domain.RiskLow
	case score <= thresholds.Medium:
		level = domain.RiskMedium
	case score <= thresholds.High:
		level = domain.RiskHigh
	default:
		level = domain.RiskCritical
	}

	status := domain.ReviewPending
	if score <= thresholds.AutoApprove {
		status = domain.ReviewAutoApproved
	}

	return level, status
}
