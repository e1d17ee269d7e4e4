package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/shopspring/decimal"
)

// Detection windows and limits for relationship patterns.
const (
	fanWindow        = 72 * time.Hour
	fanThreshold     = 8
	relayWindow      = 48 * time.Hour
	relayMinHops     = 3
	relayTolerancePct = 10
)

// HistoryRelationship detects fan-out, fan-in and mule-relay patterns
// from the transaction history in the repository.
type HistoryRelationship struct {
	repo domain.Repository
}

// NewHistoryRelationship creates a history-backed relationship adapter.
func NewHistoryRelationship(repo domain.Repository) *HistoryRelationship {
	return &HistoryRelationship{repo: repo}
}

// Check implements domain.RelationshipAdapter.
func (r *HistoryRelationship) Check(ctx context.Context, tx *domain.Transaction) ([]domain.RelationshipHit, error) {
	var hits []domain.RelationshipHit

	fanOutHit, err := r.checkFanOut(ctx, tx)
	if err != nil {
		return nil, err
	}
	if fanOutHit != nil {
		hits = append(hits, *fanOutHit)
	}

	if tx.ReceiverID != "" {
		fanInHit, err := r.checkFanIn(ctx, tx)
		if err != nil {
			return nil, err
		}
		if fanInHit != nil {
			hits = append(hits, *fanInHit)
		}
	}

	relayHit, err := r.checkMuleRelay(ctx, tx)
	if err != nil {
		return nil, err
	}
	if relayHit != nil {
		hits = append(hits, *relayHit)
	}

	return hits, nil
}

// checkFanOut flags one sender paying many distinct receivers.
func (r *HistoryRelationship) checkFanOut(ctx context.Context, tx *domain.Transaction) (*domain.RelationshipHit, error) {
	since := tx.CreatedAt.Add(-fanWindow)
	receivers, err := r.repo.CountDistinctReceivers(ctx, tx.TenantID, tx.SenderID, since)
	if err != nil {
		return nil, fmt.Errorf("count distinct receivers: %w", err)
	}

	if receivers < fanThreshold {
		return nil, nil
	}

	return &domain.RelationshipHit{
		PatternType:     domain.PatternFanOut,
		Actor:           tx.SenderID,
		Description:     fmt.Sprintf("Sender paid %d distinct receivers in 72h", receivers),
		ScoreAdjustment: 25,
	}, nil
}

// checkFanIn flags one receiver collecting from many distinct senders.
func (r *HistoryRelationship) checkFanIn(ctx context.Context, tx *domain.Transaction) (*domain.RelationshipHit, error) {
	since := tx.CreatedAt.Add(-fanWindow)
	senders, err := r.repo.CountDistinctSenders(ctx, tx.TenantID, tx.ReceiverID, since)
	if err != nil {
		return nil, fmt.Errorf("count distinct senders: %w", err)
	}

	if senders < fanThreshold {
		return nil, nil
	}

	return &domain.RelationshipHit{
		PatternType:     domain.PatternFanIn,
		Actor:           tx.ReceiverID,
		Description:     fmt.Sprintf("Receiver collected from %d distinct senders in 72h", senders),
		ScoreAdjustment: 15,
	}, nil
}

// checkMuleRelay flags a sender whose recent inbound volume closely
// matches its outbound volume across several hops, a pass-through shape.
func (r *HistoryRelationship) checkMuleRelay(ctx context.Context, tx *domain.Transaction) (*domain.RelationshipHit, error) {
	since := tx.CreatedAt.Add(-relayWindow)

	hops, err := r.repo.CountTransactionsBySender(ctx, tx.TenantID, tx.SenderID, since, tx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("count relay hops: %w", err)
	}
	if hops < relayMinHops {
		return nil, nil
	}

	inbound, err := r.repo.SumTransactionsByReceiver(ctx, tx.TenantID, tx.SenderID, since)
	if err != nil {
		return nil, fmt.Errorf("sum inbound volume: %w", err)
	}
	outbound, err := r.repo.SumTransactionsBySender(ctx, tx.TenantID, tx.SenderID, since, tx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("sum outbound volume: %w", err)
	}

	if inbound.IsZero() || outbound.IsZero() {
		return nil, nil
	}

	// Pass-through when |in - out| is within tolerance of inbound.
	diff := inbound.Sub(outbound).Abs()
	tolerance := inbound.Mul(decimal.NewFromInt(relayTolerancePct)).Div(decimal.NewFromInt(100))
	if diff.GreaterThan(tolerance) {
		return nil, nil
	}

	return &domain.RelationshipHit{
		PatternType:     domain.PatternMuleRelay,
		Actor:           tx.SenderID,
		Description:     fmt.Sprintf("Inbound volume %s mirrors outbound %s over %d hops in 48h", inbound.String(), outbound.String(), hops),
		ScoreAdjustment: 20,
	}, nil
}
