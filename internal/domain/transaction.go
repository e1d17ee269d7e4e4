package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single payment to be risk-scored.
// It is immutable input to one scoring invocation.
type Transaction struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Parties involved
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId,omitempty"`

	// Financial details
	Amount              decimal.Decimal `json:"amount"`
	SourceCurrency      string          `json:"sourceCurrency"`
	DestinationCurrency string          `json:"destinationCurrency"`

	// Corridor
	SourceCountry      string `json:"sourceCountry"`
	DestinationCountry string `json:"destinationCountry"`

	// Temporal (UTC)
	CreatedAt time.Time `json:"createdAt"`

	// Optional metadata carried through to audit context
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Hour returns the transaction's UTC hour of day.
func (t *Transaction) Hour() int {
	return t.CreatedAt.UTC().Hour()
}

// TransactionRequest is the API request payload for scoring a transaction.
type TransactionRequest struct {
	TransactionID       string                 `json:"transactionId,omitempty"`
	SenderID            string                 `json:"senderId" validate:"required"`
	ReceiverID          string                 `json:"receiverId,omitempty"`
	Amount              decimal.Decimal        `json:"amount" validate:"required"`
	SourceCurrency      string                 `json:"sourceCurrency" validate:"required,len=3"`
	DestinationCurrency string                 `json:"destinationCurrency" validate:"required,len=3"`
	SourceCountry       string                 `json:"sourceCountry" validate:"required,len=2"`
	DestinationCountry  string                 `json:"destinationCountry" validate:"required,len=2"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction(tenantID string) *Transaction {
	return &Transaction{
		ID:                  r.TransactionID,
		TenantID:            tenantID,
		SenderID:            r.SenderID,
		ReceiverID:          r.ReceiverID,
		Amount:              r.Amount,
		SourceCurrency:      r.SourceCurrency,
		DestinationCurrency: r.DestinationCurrency,
		SourceCountry:       r.SourceCountry,
		DestinationCountry:  r.DestinationCountry,
		CreatedAt:           time.Now().UTC(),
		Metadata:            r.Metadata,
	}
}
