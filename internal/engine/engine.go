// Package engine orchestrates the risk-scoring pipeline: rule catalog
// resolution, rule and compound evaluation, signal collection, score
// aggregation, classification, explanation, persistence and the
// post-analysis profile update.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/metrics"
	"github.com/opensource-finance/talon/internal/profile"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/scoring"
	"github.com/opensource-finance/talon/internal/signals"
	"github.com/opensource-finance/talon/internal/tenantconf"
)

var tracer = otel.Tracer("talon-engine")

// Engine scores one transaction per invocation. It is safe for
// concurrent use; all per-invocation state is local to the call.
type Engine struct {
	catalog   domain.RuleProvider
	evaluator *rules.Evaluator
	collector *signals.Collector
	settings  *tenantconf.Provider
	repo      domain.Repository
	profiles  *profile.Updater
	notifier  domain.Notifier
}

// New wires the scoring pipeline. notifier may be nil.
func New(
	catalog domain.RuleProvider,
	evaluator *rules.Evaluator,
	collector *signals.Collector,
	settings *tenantconf.Provider,
	repo domain.Repository,
	profiles *profile.Updater,
	notifier domain.Notifier,
) *Engine {
	return &Engine{
		catalog:   catalog,
		evaluator: evaluator,
		collector: collector,
		settings:  settings,
		repo:      repo,
		profiles:  profiles,
		notifier:  notifier,
	}
}

// Score persists an incoming transaction and runs the full pipeline.
// This is the entry point for API and worker callers.
func (e *Engine) Score(ctx context.Context, tx *domain.Transaction) (*domain.RiskAnalysis, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	if err := e.repo.SaveTransaction(ctx, tx.TenantID, tx); err != nil {
		return nil, fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}

	return e.Analyze(ctx, tx)
}

// Reanalyze re-runs the pipeline for a stored transaction. An unknown
// transaction is a hard failure: there is nothing to score.
func (e *Engine) Reanalyze(ctx context.Context, tenantID, txID string) (*domain.RiskAnalysis, error) {
	tx, err := e.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", txID, err)
	}
	return e.Analyze(ctx, tx)
}

// Analyze runs the scoring pipeline for one transaction. On context
// cancellation no partial analysis is persisted: the invocation either
// completes fully or reports an error.
func (e *Engine) Analyze(ctx context.Context, tx *domain.Transaction) (*domain.RiskAnalysis, error) {
	ctx, span := tracer.Start(ctx, "engine.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("tx.id", tx.ID),
		attribute.String("tenant.id", tx.TenantID),
	)

	start := time.Now()

	prof, err := e.repo.GetOrCreateProfile(ctx, tx.TenantID, tx.SenderID)
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", tx.SenderID, err)
	}

	ruleSet, groups, err := e.catalog.LoadRules(ctx, tx.TenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve rule catalog: %w", err)
	}

	// The three signal adapters are independent of each other and of the
	// rule evaluators; run them concurrently. Aggregation order stays
	// fixed regardless of completion order.
	watchlistCh := make(chan []domain.RiskFactor, 1)
	relationshipCh := make(chan []domain.RiskFactor, 1)
	mlCh := make(chan []domain.RiskFactor, 1)

	go func() { watchlistCh <- e.collector.Watchlist(ctx, tx) }()
	go func() { relationshipCh <- e.collector.Relationship(ctx, tx) }()
	go func() { mlCh <- e.collector.ML(ctx, tx, prof) }()

	in := &rules.Input{Tx: tx, Profile: prof}
	stages := &scoring.StagedFactors{}

	for _, rule := range ruleSet {
		factor, err := e.evaluator.Evaluate(ctx, in, rule)
		if err != nil {
			// A failing rule contributes no factor; the analysis continues.
			slog.Warn("rule evaluation failed",
				"tx_id", tx.ID,
				"rule_code", rule.RuleCode,
				"error", err,
			)
			continue
		}
		if factor == nil {
			continue
		}
		if factor.IsShadow {
			metrics.ShadowMatches.Inc()
		}
		stages.Rules = append(stages.Rules, *factor)
	}

	for _, group := range groups {
		factor := rules.EvaluateGroup(in, group)
		if factor == nil {
			continue
		}
		if factor.IsShadow {
			metrics.ShadowMatches.Inc()
		}
		stages.Compound = append(stages.Compound, *factor)
	}

	stages.Watchlist = <-watchlistCh
	stages.Relationship = <-relationshipCh
	stages.ML = <-mlCh

	result := scoring.Aggregate(stages)
	thresholds := e.settings.Thresholds(ctx, tx.TenantID)
	level, status := scoring.Classify(result.Score, thresholds)

	analysis := &domain.RiskAnalysis{
		ID:            uuid.New().String(),
		TenantID:      tx.TenantID,
		TransactionID: tx.ID,
		RiskScore:     result.Score,
		RiskLevel:     level,
		ReviewStatus:  status,
		Explanation:   scoring.Explain(result.Score, level, result.Factors),
		Factors:       result.Factors,
		AnalyzedAt:    time.Now().UTC(),
	}

	// Nothing is persisted after cancellation.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.repo.SaveAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("save analysis for %s: %w", tx.ID, err)
	}

	metrics.AnalysesTotal.WithLabelValues(string(level)).Inc()

	if e.notifier != nil && level.AtLeast(domain.RiskHigh) {
		// Best-effort, after persistence. Never affects the result.
		e.notifier.OnHighRisk(ctx, analysis)
	}

	if _, err := e.profiles.Apply(ctx, tx, level); err != nil {
		slog.Error("profile update failed after analysis",
			"tx_id", tx.ID,
			"customer_id", tx.SenderID,
			"error", err,
		)
		return analysis, fmt.Errorf("profile update for %s: %w", tx.SenderID, err)
	}

	slog.Info("transaction scored",
		"tx_id", tx.ID,
		"tenant_id", tx.TenantID,
		"score", result.Score,
		"level", level,
		"review", status,
		"factors", len(result.Factors),
		"shadow", result.ShadowCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return analysis, nil
}
