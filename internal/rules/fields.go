// Package rules provides the rule evaluation engine: field access,
// condition comparison, built-in rule kinds and compound rule groups.
package rules

import (
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/shopspring/decimal"
)

// Closed vocabulary of fields addressable by expressions and rule groups.
const (
	FieldAmount              = "Amount"
	FieldSourceCountry       = "SourceCountry"
	FieldDestinationCountry  = "DestinationCountry"
	FieldSourceCurrency      = "SourceCurrency"
	FieldDestinationCurrency = "DestinationCurrency"
	FieldTransactionHour     = "TransactionHour"
	FieldTotalTransactions   = "TotalTransactions"
	FieldTotalVolume         = "TotalVolume"
	FieldAvgTransaction      = "AvgTransaction"
	FieldMaxTransaction      = "MaxTransaction"
	FieldFlaggedCount        = "FlaggedCount"
)

// fieldDisplayNames render field names in factor descriptions.
var fieldDisplayNames = map[string]string{
	FieldAmount:              "Amount",
	FieldSourceCountry:       "Source country",
	FieldDestinationCountry:  "Destination country",
	FieldSourceCurrency:      "Source currency",
	FieldDestinationCurrency: "Destination currency",
	FieldTransactionHour:     "Transaction hour",
	FieldTotalTransactions:   "Total transactions",
	FieldTotalVolume:         "Total volume",
	FieldAvgTransaction:      "Average transaction",
	FieldMaxTransaction:      "Max transaction",
	FieldFlaggedCount:        "Flagged count",
}

// DisplayName returns the human-readable name of a field, or the raw
// field name when it is outside the vocabulary.
func DisplayName(field string) string {
	if name, ok := fieldDisplayNames[field]; ok {
		return name
	}
	return field
}

// Input bundles the read-only inputs to one rule evaluation.
type Input struct {
	Tx      *domain.Transaction
	Profile *domain.CustomerProfile
}

// FieldValue is an extracted field value. Exactly one of the typed
// accessors is meaningful, selected by Kind.
type FieldValue struct {
	Kind    FieldKind
	Decimal decimal.Decimal
	Int     int64
	Str     string
}

// FieldKind tags the runtime type of an extracted value.
type FieldKind int

const (
	KindDecimal FieldKind = iota
	KindInt
	KindString
)

// String renders the value for descriptions and audit context.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindDecimal:
		return v.Decimal.String()
	case KindInt:
		return formatInt(v.Int)
	default:
		return v.Str
	}
}

// ExtractField returns the named field's value from the transaction or
// profile. Unknown field names return ok=false: the owning rule or
// condition is treated as non-matching, never as an error.
func ExtractField(field string, in *Input) (FieldValue, bool) {
	switch field {
	case FieldAmount:
		return FieldValue{Kind: KindDecimal, Decimal: in.Tx.Amount}, true
	case FieldSourceCountry:
		return FieldValue{Kind: KindString, Str: in.Tx.SourceCountry}, true
	case FieldDestinationCountry:
		return FieldValue{Kind: KindString, Str: in.Tx.DestinationCountry}, true
	case FieldSourceCurrency:
		return FieldValue{Kind: KindString, Str: in.Tx.SourceCurrency}, true
	case FieldDestinationCurrency:
		return FieldValue{Kind: KindString, Str: in.Tx.DestinationCurrency}, true
	case FieldTransactionHour:
		return FieldValue{Kind: KindInt, Int: int64(in.Tx.Hour())}, true
	case FieldTotalTransactions:
		return FieldValue{Kind: KindInt, Int: in.Profile.TotalTransactions}, true
	case FieldTotalVolume:
		return FieldValue{Kind: KindDecimal, Decimal: in.Profile.TotalVolume}, true
	case FieldAvgTransaction:
		return FieldValue{Kind: KindDecimal, Decimal: in.Profile.AverageTransactionAmount}, true
	case FieldMaxTransaction:
		return FieldValue{Kind: KindDecimal, Decimal: in.Profile.MaxTransactionAmount}, true
	case FieldFlaggedCount:
		return FieldValue{Kind: KindInt, Int: in.Profile.FlaggedTransactionCount}, true
	default:
		return FieldValue{}, false
	}
}
