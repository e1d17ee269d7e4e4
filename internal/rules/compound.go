package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/opensource-finance/talon/internal/domain"
)

// Severity buckets for compound rule risk points. Shared so factor
// output and explanation rendering never drift.
const (
	compoundCriticalPoints = 30
	compoundWarningPoints  = 20
)

// CompoundSeverity maps a group's risk points to a factor severity.
func CompoundSeverity(riskPoints int) domain.Severity {
	switch {
	case riskPoints >= compoundCriticalPoints:
		return domain.SeverityCritical
	case riskPoints >= compoundWarningPoints:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

// conditionResult records one evaluated condition for audit context.
type conditionResult struct {
	condition domain.RuleGroupCondition
	matched   bool
	actual    string
}

// EvaluateGroup evaluates a compound rule group. Conditions run in
// OrderIndex order; AND requires all to match, OR any. The returned
// factor's description concatenates only the matched conditions.
//
// A malformed group must never abort the whole analysis: any panic is
// recovered, logged and treated as "no factor".
func EvaluateGroup(in *Input, group *domain.RuleGroup) (factor *domain.RiskFactor) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rule group evaluation panicked",
				"group", group.Name,
				"tenant_id", group.TenantID,
				"panic", r,
			)
			factor = nil
		}
	}()

	if len(group.Conditions) == 0 {
		return nil
	}

	conditions := make([]domain.RuleGroupCondition, len(group.Conditions))
	copy(conditions, group.Conditions)
	sort.SliceStable(conditions, func(i, j int) bool {
		return conditions[i].OrderIndex < conditions[j].OrderIndex
	})

	results := make([]conditionResult, 0, len(conditions))
	matchedCount := 0

	for _, cond := range conditions {
		res := conditionResult{condition: cond}

		if value, ok := ExtractField(cond.Field, in); ok {
			res.actual = value.String()
			res.matched = EvaluateCondition(value, cond.Operator, cond.Value)
		}

		if res.matched {
			matchedCount++
		}
		results = append(results, res)
	}

	triggered := false
	switch group.LogicalOperator {
	case domain.LogicalAnd:
		triggered = matchedCount == len(conditions)
	case domain.LogicalOr:
		triggered = matchedCount > 0
	}

	if !triggered {
		return nil
	}

	matched := make([]string, 0, matchedCount)
	audit := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		if res.matched {
			matched = append(matched, describeCondition(res.condition))
		}
		audit = append(audit, map[string]interface{}{
			"field":    res.condition.Field,
			"operator": res.condition.Operator,
			"expected": res.condition.Value,
			"actual":   res.actual,
			"matched":  res.matched,
		})
	}

	category := group.Category
	if category == "" {
		category = domain.CategoryCompoundRule
	}

	return &domain.RiskFactor{
		Category:          category,
		RuleName:          group.Name,
		Description:       strings.Join(matched, fmt.Sprintf(" %s ", group.LogicalOperator)),
		ScoreContribution: group.RiskPoints,
		Severity:          CompoundSeverity(group.RiskPoints),
		IsShadow:          group.IsShadow(),
		ContextData: map[string]interface{}{
			"logical_operator": string(group.LogicalOperator),
			"conditions":       audit,
			"matched_count":    matchedCount,
		},
	}
}

func describeCondition(cond domain.RuleGroupCondition) string {
	return fmt.Sprintf("%s %s %s", DisplayName(cond.Field), OperatorSymbol(cond.Operator), cond.Value)
}
