package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

// stubRepo satisfies domain.Repository for the two methods the resolver
// calls; everything else panics via the embedded nil interface.
type stubRepo struct {
	domain.Repository
	rules     []*domain.RiskRule
	groups    []*domain.RuleGroup
	rulesErr  error
	groupsErr error
}

func (s *stubRepo) ListRules(ctx context.Context, tenantID string) ([]*domain.RiskRule, error) {
	return s.rules, s.rulesErr
}

func (s *stubRepo) ListRuleGroups(ctx context.Context, tenantID string) ([]*domain.RuleGroup, error) {
	return s.groups, s.groupsErr
}

func rule(tenantID, code string, mode domain.RuleMode, weight int) *domain.RiskRule {
	return &domain.RiskRule{
		ID:          tenantID + "/" + code,
		TenantID:    tenantID,
		RuleCode:    code,
		Name:        code,
		Mode:        mode,
		ScoreWeight: weight,
	}
}

func TestLoadRules(t *testing.T) {
	ctx := context.Background()
	const tenant = "tenant-001"

	t.Run("TenantOverridesDefault", func(t *testing.T) {
		r := NewResolver(&stubRepo{rules: []*domain.RiskRule{
			rule(domain.GlobalTenantID, "HIGH_AMOUNT", domain.ModeActive, 30),
			rule(tenant, "HIGH_AMOUNT", domain.ModeActive, 50),
			rule(domain.GlobalTenantID, "VELOCITY_24H", domain.ModeActive, 25),
		}})

		rules, _, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(rules))
		}
		if rules[0].RuleCode != "HIGH_AMOUNT" || rules[0].ScoreWeight != 50 {
			t.Errorf("tenant rule should shadow the default, got %+v", rules[0])
		}
		if rules[1].RuleCode != "VELOCITY_24H" {
			t.Errorf("default without override should survive, got %+v", rules[1])
		}
	})

	t.Run("MergeIgnoresQueryOrder", func(t *testing.T) {
		// Tenant rule listed before the default it overrides.
		r := NewResolver(&stubRepo{rules: []*domain.RiskRule{
			rule(tenant, "HIGH_AMOUNT", domain.ModeActive, 50),
			rule(domain.GlobalTenantID, "HIGH_AMOUNT", domain.ModeActive, 30),
		}})

		rules, _, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(rules) != 1 || rules[0].ScoreWeight != 50 {
			t.Fatalf("expected the tenant rule regardless of order, got %+v", rules)
		}
	})

	t.Run("DisabledExcluded", func(t *testing.T) {
		r := NewResolver(&stubRepo{rules: []*domain.RiskRule{
			rule(tenant, "HIGH_AMOUNT", domain.ModeDisabled, 50),
			rule(domain.GlobalTenantID, "ROUND_AMOUNT", domain.ModeActive, 10),
		}})

		rules, _, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(rules) != 1 || rules[0].RuleCode != "ROUND_AMOUNT" {
			t.Fatalf("disabled rule must be excluded, got %+v", rules)
		}
	})

	t.Run("DisabledTenantRuleDoesNotShadowDefault", func(t *testing.T) {
		// A disabled tenant override drops out before the merge, so the
		// platform default remains in effect.
		r := NewResolver(&stubRepo{rules: []*domain.RiskRule{
			rule(domain.GlobalTenantID, "HIGH_AMOUNT", domain.ModeActive, 30),
			rule(tenant, "HIGH_AMOUNT", domain.ModeDisabled, 50),
		}})

		rules, _, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(rules) != 1 || rules[0].ScoreWeight != 30 {
			t.Fatalf("expected the global default, got %+v", rules)
		}
	})

	t.Run("ShadowIncluded", func(t *testing.T) {
		r := NewResolver(&stubRepo{rules: []*domain.RiskRule{
			rule(tenant, "NEW_CUSTOMER", domain.ModeShadow, 10),
		}})

		rules, _, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(rules) != 1 || !rules[0].IsShadow() {
			t.Fatalf("shadow rule must stay in the catalog, got %+v", rules)
		}
	})

	t.Run("SortedByRuleCode", func(t *testing.T) {
		r := NewResolver(&stubRepo{rules: []*domain.RiskRule{
			rule(tenant, "VELOCITY_24H", domain.ModeActive, 25),
			rule(tenant, "HIGH_AMOUNT", domain.ModeActive, 30),
			rule(tenant, "NEW_CUSTOMER", domain.ModeActive, 10),
		}})

		rules, _, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		want := []string{"HIGH_AMOUNT", "NEW_CUSTOMER", "VELOCITY_24H"}
		for i, code := range want {
			if rules[i].RuleCode != code {
				t.Errorf("position %d: expected %s, got %s", i, code, rules[i].RuleCode)
			}
		}
	})

	t.Run("RepoErrorWrapped", func(t *testing.T) {
		cause := errors.New("db gone")
		r := NewResolver(&stubRepo{rulesErr: cause})
		if _, _, err := r.LoadRules(ctx, tenant); !errors.Is(err, cause) {
			t.Fatalf("expected wrapped repo error, got %v", err)
		}
	})
}

func TestLoadRuleGroups(t *testing.T) {
	ctx := context.Background()
	const tenant = "tenant-001"

	cond := domain.RuleGroupCondition{Field: "Amount", Operator: ">=", Value: "5000"}

	t.Run("FiltersDisabledAndEmpty", func(t *testing.T) {
		r := NewResolver(&stubRepo{groups: []*domain.RuleGroup{
			{ID: "g1", TenantID: tenant, Name: "Keep", Mode: domain.ModeActive, Conditions: []domain.RuleGroupCondition{cond}},
			{ID: "g2", TenantID: tenant, Name: "Disabled", Mode: domain.ModeDisabled, Conditions: []domain.RuleGroupCondition{cond}},
			{ID: "g3", TenantID: tenant, Name: "Empty", Mode: domain.ModeActive},
		}})

		_, groups, err := r.LoadRules(ctx, tenant)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if len(groups) != 1 || groups[0].ID != "g1" {
			t.Fatalf("expected only the active non-empty group, got %+v", groups)
		}
	})

	t.Run("GroupErrorWrapped", func(t *testing.T) {
		cause := errors.New("db gone")
		r := NewResolver(&stubRepo{groupsErr: cause})
		if _, _, err := r.LoadRules(ctx, tenant); !errors.Is(err, cause) {
			t.Fatalf("expected wrapped repo error, got %v", err)
		}
	})
}
