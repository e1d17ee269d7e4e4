// Package scoring aggregates risk factors into a clamped score, maps it
// to a risk level and review decision, and renders the explanation.
package scoring

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// Score bounds after every additive stage.
const (
	minScore = 0
	maxScore = 100
)

// StagedFactors carries factor lists in the fixed aggregation order:
// single-field rules, compound rules, watchlist, relationship, ML.
// Adapters may run concurrently, but this ordering is what scores.
type StagedFactors struct {
	Rules        []domain.RiskFactor
	Compound     []domain.RiskFactor
	Watchlist    []domain.RiskFactor
	Relationship []domain.RiskFactor
	ML           []domain.RiskFactor
}

// All returns the factors flattened in aggregation order.
func (s *StagedFactors) All() []domain.RiskFactor {
	out := make([]domain.RiskFactor, 0,
		len(s.Rules)+len(s.Compound)+len(s.Watchlist)+len(s.Relationship)+len(s.ML))
	out = append(out, s.Rules...)
	out = append(out, s.Compound...)
	out = append(out, s.Watchlist...)
	out = append(out, s.Relationship...)
	out = append(out, s.ML...)
	return out
}

// AggregateResult is the deterministic outcome of score aggregation.
type AggregateResult struct {
	// Score is the final total, clamped to [0,100].
	Score int

	// ShadowCount and ShadowPoints track shadow-mode contributions
	// recorded in the factor list but excluded from Score.
	ShadowCount  int
	ShadowPoints int

	// Factors is the full ordered factor list, shadow included.
	Factors []domain.RiskFactor
}

// Aggregate sums non-shadow contributions stage by stage, clamping the
// running total to [0,100] after every stage. Shadow factors are kept
// in the factor list for audit but never scored.
func Aggregate(stages *StagedFactors) *AggregateResult {
	result := &AggregateResult{
		Factors: stages.All(),
	}

	running := 0
	for _, stage := range [][]domain.RiskFactor{
		stages.Rules,
		stages.Compound,
		stages.Watchlist,
		stages.Relationship,
		stages.ML,
	} {
		for _, f := range stage {
			if f.IsShadow {
				result.ShadowCount++
				result.ShadowPoints += f.ScoreContribution
				continue
			}
			running += f.ScoreContribution
		}
		running = clamp(running)
	}

	result.Score = running
	return result
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
