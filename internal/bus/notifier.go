package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/talon/internal/domain"
)

// AlertNotifier publishes high-risk analyses to the alert topic so
// downstream consumers (case management, webhooks) can react. Failures
// are logged and swallowed: alerting never fails an analysis.
type AlertNotifier struct {
	bus domain.EventBus
}

// NewAlertNotifier creates a bus-backed notifier.
func NewAlertNotifier(bus domain.EventBus) *AlertNotifier {
	return &AlertNotifier{bus: bus}
}

// alertEvent is the published payload. Factors are omitted; consumers
// fetch the full analysis by ID if they need the breakdown.
type alertEvent struct {
	AnalysisID    string `json:"analysis_id"`
	TransactionID string `json:"transaction_id"`
	RiskScore     int    `json:"risk_score"`
	RiskLevel     string `json:"risk_level"`
	Explanation   string `json:"explanation"`
}

// OnHighRisk implements domain.Notifier.
func (n *AlertNotifier) OnHighRisk(ctx context.Context, analysis *domain.RiskAnalysis) {
	event := alertEvent{
		AnalysisID:    analysis.ID,
		TransactionID: analysis.TransactionID,
		RiskScore:     analysis.RiskScore,
		RiskLevel:     string(analysis.RiskLevel),
		Explanation:   analysis.Explanation,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal alert event", "analysis_id", analysis.ID, "error", err)
		return
	}

	if err := n.bus.Publish(ctx, analysis.TenantID, domain.TopicAlert, payload); err != nil {
		slog.Warn("failed to publish alert",
			"analysis_id", analysis.ID,
			"tenant_id", analysis.TenantID,
			"error", err,
		)
	}
}
