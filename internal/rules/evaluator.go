package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/shopspring/decimal"
)

// Built-in rule codes. Codes outside this set dispatch to the generic
// expression path when the rule carries an expression.
const (
	CodeHighAmount       = "HIGH_AMOUNT"
	CodeVelocity24h      = "VELOCITY_24H"
	CodeNewCustomer      = "NEW_CUSTOMER"
	CodeHighRiskCorridor = "HIGH_RISK_CORRIDOR"
	CodeRoundAmount      = "ROUND_AMOUNT"
	CodeUnusualTime      = "UNUSUAL_TIME"
)

// Unusual-time window, UTC hours inclusive.
const (
	unusualHourStart = 2
	unusualHourEnd   = 5
)

// CountrySetGetter returns the tenant's high-risk country set.
// Errors fall back to the static default set.
type CountrySetGetter func(ctx context.Context, tenantID string) ([]string, error)

// builtinFunc evaluates one built-in rule kind. A nil factor means the
// rule did not fire.
type builtinFunc func(ctx context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error)

// Evaluator evaluates single-field rules against one transaction.
type Evaluator struct {
	history   domain.HistoryReader
	countries CountrySetGetter
	builtins  map[string]builtinFunc
}

// NewEvaluator creates a rule evaluator. history backs the 24h velocity
// rule; countries backs the high-risk corridor rule (nil uses defaults).
func NewEvaluator(history domain.HistoryReader, countries CountrySetGetter) *Evaluator {
	e := &Evaluator{
		history:   history,
		countries: countries,
	}
	e.builtins = map[string]builtinFunc{
		CodeHighAmount:       e.evalHighAmount,
		CodeVelocity24h:      e.evalVelocity24h,
		CodeNewCustomer:      e.evalNewCustomer,
		CodeHighRiskCorridor: e.evalHighRiskCorridor,
		CodeRoundAmount:      e.evalRoundAmount,
		CodeUnusualTime:      e.evalUnusualTime,
	}
	return e
}

// Evaluate runs one rule against the input. A nil factor with nil error
// means the rule did not fire. Errors are confined to the calling
// pipeline stage; the rule then contributes no factor.
func (e *Evaluator) Evaluate(ctx context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	if fn, ok := e.builtins[rule.RuleCode]; ok {
		return fn(ctx, in, rule)
	}
	if rule.Expression != nil {
		return e.evalExpression(in, rule), nil
	}
	slog.Debug("rule has no built-in handler and no expression",
		"rule_code", rule.RuleCode,
		"tenant_id", rule.TenantID,
	)
	return nil, nil
}

func (e *Evaluator) evalHighAmount(_ context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	threshold := decimal.NewFromFloat(rule.Threshold)
	amount := in.Tx.Amount

	if amount.LessThan(threshold) {
		return nil, nil
	}

	severity := domain.SeverityWarning
	if amount.GreaterThanOrEqual(threshold.Mul(decimal.NewFromInt(2))) {
		severity = domain.SeverityCritical
	}

	factor := newFactor(rule, severity,
		fmt.Sprintf("Amount %s meets or exceeds threshold %s", amount.String(), threshold.String()))
	factor.ContextData = map[string]interface{}{
		"amount":    amount.String(),
		"threshold": threshold.String(),
	}
	return factor, nil
}

func (e *Evaluator) evalVelocity24h(ctx context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	if e.history == nil {
		return nil, fmt.Errorf("velocity rule %s: no history reader configured", rule.RuleCode)
	}

	until := in.Tx.CreatedAt
	since := until.Add(-24 * time.Hour)

	count, err := e.history.CountRecent(ctx, in.Tx.TenantID, in.Tx.SenderID, since, until)
	if err != nil {
		return nil, fmt.Errorf("velocity lookup for sender %s: %w", in.Tx.SenderID, err)
	}

	threshold := int64(rule.Threshold)
	if threshold <= 0 || count < threshold {
		return nil, nil
	}

	severity := domain.SeverityWarning
	if count >= 2*threshold {
		severity = domain.SeverityAlert
	}

	factor := newFactor(rule, severity,
		fmt.Sprintf("%d transactions from sender in the last 24 hours (limit %d)", count, threshold))
	factor.ContextData = map[string]interface{}{
		"count":     count,
		"threshold": threshold,
		"window":    "24h",
	}
	return factor, nil
}

func (e *Evaluator) evalNewCustomer(_ context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	threshold := int64(rule.Threshold)
	total := in.Profile.TotalTransactions

	if total >= threshold {
		return nil, nil
	}

	severity := domain.SeverityInfo
	desc := fmt.Sprintf("Customer has only %d prior transaction(s)", total)
	if total == 0 {
		severity = domain.SeverityWarning
		desc = "First transaction from this customer"
	}

	factor := newFactor(rule, severity, desc)
	factor.ContextData = map[string]interface{}{
		"total_transactions": total,
		"threshold":          threshold,
	}
	return factor, nil
}

func (e *Evaluator) evalHighRiskCorridor(ctx context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	set := domain.DefaultHighRiskCountries
	if e.countries != nil {
		tenantSet, err := e.countries(ctx, in.Tx.TenantID)
		if err != nil {
			slog.Warn("high-risk country set unavailable, using defaults",
				"tenant_id", in.Tx.TenantID,
				"error", err,
			)
		} else if len(tenantSet) > 0 {
			set = tenantSet
		}
	}

	highRisk := make(map[string]struct{}, len(set))
	for _, c := range set {
		highRisk[c] = struct{}{}
	}

	_, srcHit := highRisk[in.Tx.SourceCountry]
	_, dstHit := highRisk[in.Tx.DestinationCountry]
	if !srcHit && !dstHit {
		return nil, nil
	}

	factor := newFactor(rule, domain.SeverityCritical,
		fmt.Sprintf("Corridor %s->%s involves a high-risk country", in.Tx.SourceCountry, in.Tx.DestinationCountry))
	factor.ContextData = map[string]interface{}{
		"source_country":      in.Tx.SourceCountry,
		"destination_country": in.Tx.DestinationCountry,
		"source_hit":          srcHit,
		"destination_hit":     dstHit,
	}
	return factor, nil
}

func (e *Evaluator) evalRoundAmount(_ context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	threshold := decimal.NewFromFloat(rule.Threshold)
	amount := in.Tx.Amount

	if amount.LessThan(threshold) || !amount.Mod(decimal.NewFromInt(1000)).IsZero() {
		return nil, nil
	}

	factor := newFactor(rule, domain.SeverityInfo,
		fmt.Sprintf("Round amount %s (multiple of 1000)", amount.String()))
	factor.ContextData = map[string]interface{}{
		"amount": amount.String(),
	}
	return factor, nil
}

func (e *Evaluator) evalUnusualTime(_ context.Context, in *Input, rule *domain.RiskRule) (*domain.RiskFactor, error) {
	hour := in.Tx.Hour()
	if hour < unusualHourStart || hour > unusualHourEnd {
		return nil, nil
	}

	factor := newFactor(rule, domain.SeverityInfo,
		fmt.Sprintf("Transaction created at %s UTC during unusual hours", in.Tx.CreatedAt.UTC().Format("15:04")))
	factor.ContextData = map[string]interface{}{
		"hour": hour,
	}
	return factor, nil
}

// evalExpression is the generic comparison path for rule codes without a
// built-in handler. Unknown fields and unparseable values mean the rule
// silently does not fire.
func (e *Evaluator) evalExpression(in *Input, rule *domain.RiskRule) *domain.RiskFactor {
	expr := rule.Expression

	value, ok := ExtractField(expr.Field, in)
	if !ok {
		slog.Debug("expression references unknown field",
			"rule_code", rule.RuleCode,
			"field", expr.Field,
		)
		return nil
	}

	if !EvaluateCondition(value, expr.Operator, expr.Value) {
		return nil
	}

	severity := domain.SeverityInfo
	if rule.ScoreWeight >= 25 {
		severity = domain.SeverityWarning
	}

	factor := newFactor(rule, severity,
		fmt.Sprintf("%s %s %s (actual: %s)",
			DisplayName(expr.Field), OperatorSymbol(expr.Operator), expr.Value, value.String()))
	factor.ContextData = map[string]interface{}{
		"field":    expr.Field,
		"operator": expr.Operator,
		"expected": expr.Value,
		"actual":   value.String(),
	}
	return factor
}

func newFactor(rule *domain.RiskRule, severity domain.Severity, description string) *domain.RiskFactor {
	category := rule.Category
	if category == "" {
		category = domain.CategoryRule
	}
	return &domain.RiskFactor{
		Category:          category,
		RuleName:          rule.Name,
		Description:       description,
		ScoreContribution: rule.ScoreWeight,
		Severity:          severity,
		IsShadow:          rule.IsShadow(),
	}
}
