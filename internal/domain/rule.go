package domain

// RuleMode controls whether a rule scores, only observes, or is off.
type RuleMode string

const (
	// ModeActive rules contribute to the risk score.
	ModeActive RuleMode = "ACTIVE"

	// ModeShadow rules are evaluated and recorded but never scored.
	// Used to trial new rules risk-free.
	ModeShadow RuleMode = "SHADOW"

	// ModeDisabled rules are excluded from the catalog entirely.
	ModeDisabled RuleMode = "DISABLED"
)

// GlobalTenantID marks a rule as a platform-wide default.
// Tenant-specific rules with the same ruleCode take precedence.
const GlobalTenantID = ""

// RiskRule is a single-field scoring rule. RuleCode selects one of the
// built-in evaluators; codes without a built-in handler fall back to the
// generic Expression comparison when one is present.
type RiskRule struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	RuleCode string `json:"ruleCode"`
	Name     string `json:"name"`
	Category string `json:"category"`

	Mode RuleMode `json:"mode"`

	// Threshold is interpreted per rule kind (amount, count, ...).
	Threshold float64 `json:"threshold"`

	// ScoreWeight is the points this rule adds when it fires.
	ScoreWeight int `json:"scoreWeight"`

	// Expression is the generic comparison used only when RuleCode has
	// no built-in handler.
	Expression *RuleExpression `json:"expression,omitempty"`
}

// RuleExpression is a single field/operator/value comparison.
type RuleExpression struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// IsShadow reports whether the rule is in shadow (observe-only) mode.
func (r *RiskRule) IsShadow() bool { return r.Mode == ModeShadow }

// LogicalOperator joins compound rule conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// RuleGroup is a compound rule: an ordered list of conditions combined
// under AND/OR semantics. Groups are tenant-scoped; there are no global
// default groups.
type RuleGroup struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Name     string `json:"name"`
	Category string `json:"category"`

	LogicalOperator LogicalOperator `json:"logicalOperator"`
	RiskPoints      int             `json:"riskPoints"`
	Mode            RuleMode        `json:"mode"`

	Conditions []RuleGroupCondition `json:"conditions"`
}

// RuleGroupCondition is one comparison within a RuleGroup, evaluated in
// OrderIndex order.
type RuleGroupCondition struct {
	Field      string `json:"field"`
	Operator   string `json:"operator"`
	Value      string `json:"value"`
	OrderIndex int    `json:"orderIndex"`
}

// IsShadow reports whether the group is in shadow (observe-only) mode.
func (g *RuleGroup) IsShadow() bool { return g.Mode == ModeShadow }
