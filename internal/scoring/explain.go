package scoring

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/talon/internal/domain"
)

// Explain renders the factor list into the human-readable summary.
// The segment ordering and wording are stable: golden-output tests and
// downstream review tooling depend on them.
func Explain(score int, level domain.RiskLevel, factors []domain.RiskFactor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk Score: %d/100 (%s).", score, levelLabel(level))

	var criticals, warnings []string
	infoCount := 0
	shadowCount := 0
	shadowPoints := 0

	for _, f := range factors {
		if f.IsShadow {
			shadowCount++
			shadowPoints += f.ScoreContribution
			continue
		}
		switch {
		case f.Severity == domain.SeverityCritical:
			criticals = append(criticals, f.Description)
		case f.Severity.AtLeast(domain.SeverityWarning):
			warnings = append(warnings, f.Description)
		default:
			infoCount++
		}
	}

	if len(criticals) > 0 {
		fmt.Fprintf(&b, " CRITICAL: %s.", strings.Join(criticals, "; "))
	}

	if len(warnings) > 0 {
		fmt.Fprintf(&b, " Warnings: %s.", strings.Join(warnings, "; "))
	}

	if infoCount > 0 {
		fmt.Fprintf(&b, " %d informational signal(s) noted.", infoCount)
	}

	if shadowCount > 0 {
		fmt.Fprintf(&b, " [Shadow mode: %d rule(s) matched (+%d pts not scored).]", shadowCount, shadowPoints)
	}

	return b.String()
}

// levelLabel renders a risk level in title case for explanations.
func levelLabel(level domain.RiskLevel) string {
	switch level {
	case domain.RiskLow:
		return "Low"
	case domain.RiskMedium:
		return "Medium"
	case domain.RiskHigh:
		return "High"
	case domain.RiskCritical:
		return "Critical"
	default:
		return string(level)
	}
}
