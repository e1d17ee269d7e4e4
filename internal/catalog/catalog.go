// Package catalog resolves the effective rule set for a tenant,
// merging tenant-specific rules over platform defaults.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// Resolver loads enabled rules and rule groups for a tenant. Within one
// ruleCode a tenant-specific rule shadows the platform default, so the
// resolved catalog carries at most one rule per code.
type Resolver struct {
	repo domain.Repository
}

// NewResolver creates a catalog resolver backed by the repository.
func NewResolver(repo domain.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// LoadRules implements domain.RuleProvider. Disabled rules are excluded;
// shadow rules are included and tagged via their Mode. Rule groups are
// tenant-scoped only and included when their condition list is non-empty.
func (r *Resolver) LoadRules(ctx context.Context, tenantID string) ([]*domain.RiskRule, []*domain.RuleGroup, error) {
	all, err := r.repo.ListRules(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rules for tenant %s: %w", tenantID, err)
	}

	// Two-pass merge: index tenant and default rules by code, then
	// prefer the tenant rule. Avoids any dependence on query order.
	tenantRules := make(map[string]*domain.RiskRule)
	defaultRules := make(map[string]*domain.RiskRule)

	for _, rule := range all {
		if rule.Mode == domain.ModeDisabled {
			continue
		}
		switch rule.TenantID {
		case tenantID:
			tenantRules[rule.RuleCode] = rule
		case domain.GlobalTenantID:
			defaultRules[rule.RuleCode] = rule
		}
	}

	merged := make(map[string]*domain.RiskRule, len(defaultRules)+len(tenantRules))
	for code, rule := range defaultRules {
		merged[code] = rule
	}
	for code, rule := range tenantRules {
		merged[code] = rule
	}

	rules := make([]*domain.RiskRule, 0, len(merged))
	for _, rule := range merged {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].RuleCode < rules[j].RuleCode })

	allGroups, err := r.repo.ListRuleGroups(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rule groups for tenant %s: %w", tenantID, err)
	}

	groups := make([]*domain.RuleGroup, 0, len(allGroups))
	for _, g := range allGroups {
		if g.Mode == domain.ModeDisabled || len(g.Conditions) == 0 {
			continue
		}
		groups = append(groups, g)
	}

	return rules, groups, nil
}
