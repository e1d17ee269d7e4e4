package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// ErrNoModel indicates no trained model exists for the tenant. The
// pipeline treats it as "no prediction", not a failure.
var ErrNoModel = errors.New("no trained model for tenant")

// HTTPMLClient calls an external model-serving endpoint for fraud
// probability predictions.
type HTTPMLClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPMLClient creates an ML adapter against a model-serving
// endpoint. An empty endpoint disables the signal entirely.
func NewHTTPMLClient(endpoint string, timeout time.Duration) *HTTPMLClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPMLClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// scoreRequest is the model-serving request payload.
type scoreRequest struct {
	TenantID           string   `json:"tenantId"`
	TransactionID      string   `json:"transactionId"`
	Amount             string   `json:"amount"`
	SourceCountry      string   `json:"sourceCountry"`
	DestinationCountry string   `json:"destinationCountry"`
	SourceCurrency     string   `json:"sourceCurrency"`
	TransactionHour    int      `json:"transactionHour"`
	TotalTransactions  int64    `json:"totalTransactions"`
	AvgTransaction     string   `json:"avgTransaction"`
	FlaggedCount       int64    `json:"flaggedCount"`
	RiskTier           string   `json:"riskTier"`
}

// scoreResponse is the model-serving response payload.
type scoreResponse struct {
	FraudProbability  float64  `json:"fraudProbability"`
	ScoreContribution int      `json:"scoreContribution"`
	TopFeatures       []string `json:"topFeatures"`
	ModelVersion      string   `json:"modelVersion"`
}

// Score implements domain.MLAdapter. Returns (nil, nil) when no model is
// configured or trained for the tenant.
func (c *HTTPMLClient) Score(ctx context.Context, tx *domain.Transaction, profile *domain.CustomerProfile) (*domain.MLPrediction, error) {
	if c.endpoint == "" {
		return nil, nil
	}

	payload := scoreRequest{
		TenantID:           tx.TenantID,
		TransactionID:      tx.ID,
		Amount:             tx.Amount.String(),
		SourceCountry:      tx.SourceCountry,
		DestinationCountry: tx.DestinationCountry,
		SourceCurrency:     tx.SourceCurrency,
		TransactionHour:    tx.Hour(),
		TotalTransactions:  profile.TotalTransactions,
		AvgTransaction:     profile.AverageTransactionAmount.String(),
		FlaggedCount:       profile.FlaggedTransactionCount,
		RiskTier:           string(profile.RiskTier),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Endpoint reports no trained model for this tenant.
		return nil, nil
	default:
		return nil, fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}

	return &domain.MLPrediction{
		FraudProbability:  out.FraudProbability,
		ScoreContribution: out.ScoreContribution,
		TopFeatures:       out.TopFeatures,
		ModelVersion:      out.ModelVersion,
	}, nil
}
