package rules

import (
	"strings"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func highValueCrossBorderGroup() *domain.RuleGroup {
	return &domain.RuleGroup{
		ID: "grp-001", TenantID: "tenant-001",
		Name:            "High-value cross-border",
		LogicalOperator: domain.LogicalAnd,
		RiskPoints:      30,
		Mode:            domain.ModeActive,
		Conditions: []domain.RuleGroupCondition{
			{Field: FieldAmount, Operator: OpGTE, Value: "5000", OrderIndex: 0},
			{Field: FieldDestinationCountry, Operator: OpNEQ, Value: "US", OrderIndex: 1},
		},
	}
}

func TestEvaluateGroupAnd(t *testing.T) {
	group := highValueCrossBorderGroup()

	t.Run("AllConditionsMatch", func(t *testing.T) {
		factor := EvaluateGroup(testInput("7500", noon()), group)
		if factor == nil {
			t.Fatal("expected AND group to fire when all conditions match")
		}
		if factor.ScoreContribution != 30 {
			t.Errorf("expected contribution 30, got %d", factor.ScoreContribution)
		}
		if factor.Severity != domain.SeverityCritical {
			t.Errorf("expected CRITICAL for 30 points, got %s", factor.Severity)
		}
		if !strings.Contains(factor.Description, " AND ") {
			t.Errorf("expected AND join in description, got %q", factor.Description)
		}
		if !strings.Contains(factor.Description, "Amount ≥ 5000") {
			t.Errorf("expected rendered condition in description, got %q", factor.Description)
		}
	})

	t.Run("OneConditionFails", func(t *testing.T) {
		in := testInput("7500", noon())
		in.Tx.DestinationCountry = "US"
		if factor := EvaluateGroup(in, group); factor != nil {
			t.Error("AND group must not fire when one condition fails")
		}
	})
}

func TestEvaluateGroupOr(t *testing.T) {
	group := highValueCrossBorderGroup()
	group.LogicalOperator = domain.LogicalOr
	group.RiskPoints = 20

	t.Run("OneConditionMatches", func(t *testing.T) {
		in := testInput("100", noon()) // amount fails, corridor matches
		factor := EvaluateGroup(in, group)
		if factor == nil {
			t.Fatal("expected OR group to fire when any condition matches")
		}
		if factor.Severity != domain.SeverityWarning {
			t.Errorf("expected WARNING for 20 points, got %s", factor.Severity)
		}
		// Only matched conditions appear in the description.
		if strings.Contains(factor.Description, "Amount") {
			t.Errorf("unmatched condition leaked into description: %q", factor.Description)
		}
	})

	t.Run("NoConditionMatches", func(t *testing.T) {
		in := testInput("100", noon())
		in.Tx.DestinationCountry = "US"
		if factor := EvaluateGroup(in, group); factor != nil {
			t.Error("OR group must not fire when nothing matches")
		}
	})
}

func TestEvaluateGroupEdgeCases(t *testing.T) {
	t.Run("EmptyConditions", func(t *testing.T) {
		group := highValueCrossBorderGroup()
		group.Conditions = nil
		if factor := EvaluateGroup(testInput("7500", noon()), group); factor != nil {
			t.Error("group without conditions must never fire")
		}
	})

	t.Run("ShadowGroup", func(t *testing.T) {
		group := highValueCrossBorderGroup()
		group.Mode = domain.ModeShadow
		factor := EvaluateGroup(testInput("7500", noon()), group)
		if factor == nil {
			t.Fatal("shadow group still produces a factor")
		}
		if !factor.IsShadow {
			t.Error("expected IsShadow on shadow group factor")
		}
	})

	t.Run("OrderIndexControlsDescription", func(t *testing.T) {
		group := highValueCrossBorderGroup()
		// Reverse the declared order; OrderIndex should win.
		group.Conditions[0].OrderIndex = 5
		factor := EvaluateGroup(testInput("7500", noon()), group)
		if factor == nil {
			t.Fatal("expected group to fire")
		}
		if !strings.HasPrefix(factor.Description, "Destination country") {
			t.Errorf("expected OrderIndex ordering, got %q", factor.Description)
		}
	})

	t.Run("PanicIsIsolated", func(t *testing.T) {
		group := highValueCrossBorderGroup()
		// Nil transaction makes field extraction panic; the group must
		// absorb it and report no factor.
		in := &Input{Tx: nil, Profile: nil}
		if factor := EvaluateGroup(in, group); factor != nil {
			t.Error("expected nil factor after recovered panic")
		}
	})

	t.Run("UnknownFieldCountsAsUnmatched", func(t *testing.T) {
		group := highValueCrossBorderGroup()
		group.Conditions = append(group.Conditions, domain.RuleGroupCondition{
			Field: "NoSuchField", Operator: OpEQ, Value: "1", OrderIndex: 2,
		})
		if factor := EvaluateGroup(testInput("7500", noon()), group); factor != nil {
			t.Error("AND group with an unknown-field condition must not fire")
		}
	})
}

func TestCompoundSeverity(t *testing.T) {
	tests := []struct {
		points int
		want   domain.Severity
	}{
		{30, domain.SeverityCritical},
		{45, domain.SeverityCritical},
		{29, domain.SeverityWarning},
		{20, domain.SeverityWarning},
		{19, domain.SeverityInfo},
		{0, domain.SeverityInfo},
	}
	for _, tt := range tests {
		if got := CompoundSeverity(tt.points); got != tt.want {
			t.Errorf("CompoundSeverity(%d) = %s, want %s", tt.points, got, tt.want)
		}
	}
}
