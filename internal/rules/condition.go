package rules

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Comparison operators accepted by expressions and rule group conditions.
const (
	OpGTE         = ">="
	OpLTE         = "<="
	OpGT          = ">"
	OpLT          = "<"
	OpEQ          = "=="
	OpNEQ         = "!="
	OpContains    = "contains"
	OpNotContains = "not_contains"
)

// operatorSymbols is the single source of truth for rendering operators
// in factor descriptions and explanations.
var operatorSymbols = map[string]string{
	OpGTE:         "≥",
	OpLTE:         "≤",
	OpGT:          ">",
	OpLT:          "<",
	OpEQ:          "=",
	OpNEQ:         "≠",
	OpContains:    "contains",
	OpNotContains: "does not contain",
}

// OperatorSymbol renders an operator for human-readable output.
func OperatorSymbol(op string) string {
	if sym, ok := operatorSymbols[op]; ok {
		return sym
	}
	return op
}

// EvaluateCondition compares an extracted value against a target literal.
//
// Numeric-first semantics: when the value is numeric and the target
// parses as the same numeric kind, the operator applies numerically and
// contains/not_contains evaluate false. Otherwise both sides compare as
// case-insensitive strings, where only ==, !=, contains and not_contains
// are meaningful and the ordering operators evaluate false.
func EvaluateCondition(value FieldValue, operator, target string) bool {
	switch value.Kind {
	case KindDecimal:
		if t, err := decimal.NewFromString(strings.TrimSpace(target)); err == nil {
			return compareDecimal(value.Decimal, operator, t)
		}
	case KindInt:
		if t, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64); err == nil {
			return compareInt(value.Int, operator, t)
		}
	}
	return compareString(value.String(), operator, target)
}

func compareDecimal(v decimal.Decimal, operator string, t decimal.Decimal) bool {
	cmp := v.Cmp(t)
	switch operator {
	case OpGTE:
		return cmp >= 0
	case OpLTE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpLT:
		return cmp < 0
	case OpEQ:
		return cmp == 0
	case OpNEQ:
		return cmp != 0
	default:
		// contains/not_contains are invalid for numerics
		return false
	}
}

func compareInt(v int64, operator string, t int64) bool {
	switch operator {
	case OpGTE:
		return v >= t
	case OpLTE:
		return v <= t
	case OpGT:
		return v > t
	case OpLT:
		return v < t
	case OpEQ:
		return v == t
	case OpNEQ:
		return v != t
	default:
		return false
	}
}

func compareString(v, operator, t string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	lt := strings.ToLower(strings.TrimSpace(t))

	switch operator {
	case OpEQ:
		return lv == lt
	case OpNEQ:
		return lv != lt
	case OpContains:
		return strings.Contains(lv, lt)
	case OpNotContains:
		return !strings.Contains(lv, lt)
	default:
		// Ordering operators are not meaningful for strings
		return false
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
