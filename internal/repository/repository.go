// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/shopspring/decimal"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	metadata, _ := json.Marshal(tx.Metadata)
	amountNumeric, _ := tx.Amount.Float64()

	query := `
		INSERT INTO transactions (
			id, tenant_id, sender_id, receiver_id,
			amount, amount_numeric, source_currency, destination_currency,
			source_country, destination_country, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.SenderID, nullString(tx.ReceiverID),
		tx.Amount.String(), amountNumeric,
		tx.SourceCurrency, tx.DestinationCurrency,
		tx.SourceCountry, tx.DestinationCountry,
		tx.CreatedAt, string(metadata),
	)
	return err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, sender_id, receiver_id,
			   amount, source_currency, destination_currency,
			   source_country, destination_country, created_at, metadata
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	var tx domain.Transaction
	var receiver sql.NullString
	var amount, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(
		&tx.ID, &tx.TenantID, &tx.SenderID, &receiver,
		&amount, &tx.SourceCurrency, &tx.DestinationCurrency,
		&tx.SourceCountry, &tx.DestinationCountry, &tx.CreatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tx.ReceiverID = receiver.String
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for transaction %s: %w", txID, err)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &tx.Metadata)
	}

	return &tx, nil
}

// CountTransactionsBySender counts a sender's transactions in [since, until).
func (r *SQLRepository) CountTransactionsBySender(ctx context.Context, tenantID, senderID string, since, until time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE tenant_id = ? AND sender_id = ?
		  AND created_at >= ? AND created_at < ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, senderID, since, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SumTransactionsBySender sums a sender's transaction amounts in [since, until).
// Amounts are summed decimally in Go; the stored text column is exact.
func (r *SQLRepository) SumTransactionsBySender(ctx context.Context, tenantID, senderID string, since, until time.Time) (decimal.Decimal, error) {
	query := `
		SELECT amount FROM transactions
		WHERE tenant_id = ? AND sender_id = ?
		  AND created_at >= ? AND created_at < ?
	`
	return r.sumAmounts(ctx, query, tenantID, senderID, since, until)
}

// SumTransactionsByReceiver sums amounts received by a customer since a time.
func (r *SQLRepository) SumTransactionsByReceiver(ctx context.Context, tenantID, receiverID string, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT amount FROM transactions
		WHERE tenant_id = ? AND receiver_id = ?
		  AND created_at >= ?
	`
	return r.sumAmounts(ctx, query, tenantID, receiverID, since)
}

func (r *SQLRepository) sumAmounts(ctx context.Context, query string, args ...interface{}) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount: %w", err)
		}
		sum = sum.Add(d)
	}
	return sum, rows.Err()
}

// CountDistinctReceivers counts distinct receivers a sender paid since a time.
func (r *SQLRepository) CountDistinctReceivers(ctx context.Context, tenantID, senderID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT receiver_id) FROM transactions
		WHERE tenant_id = ? AND sender_id = ?
		  AND receiver_id IS NOT NULL AND receiver_id != ''
		  AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, senderID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct receivers: %w", err)
	}
	return count, nil
}

// CountDistinctSenders counts distinct senders paying a receiver since a time.
func (r *SQLRepository) CountDistinctSenders(ctx context.Context, tenantID, receiverID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT sender_id) FROM transactions
		WHERE tenant_id = ? AND receiver_id = ?
		  AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, receiverID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct senders: %w", err)
	}
	return count, nil
}

// SaveRule upserts a risk rule keyed by (tenant_id, rule_code).
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.RiskRule) error {
	if rule.RuleCode == "" {
		return fmt.Errorf("%w: ruleCode is required", domain.ErrInvalidInput)
	}

	var field, operator, value sql.NullString
	if rule.Expression != nil {
		field = sql.NullString{String: rule.Expression.Field, Valid: true}
		operator = sql.NullString{String: rule.Expression.Operator, Valid: true}
		value = sql.NullString{String: rule.Expression.Value, Valid: true}
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO risk_rules (
			id, tenant_id, rule_code, name, category, mode,
			threshold, score_weight, expr_field, expr_operator, expr_value,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, rule_code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			mode = excluded.mode,
			threshold = excluded.threshold,
			score_weight = excluded.score_weight,
			expr_field = excluded.expr_field,
			expr_operator = excluded.expr_operator,
			expr_value = excluded.expr_value,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.TenantID, rule.RuleCode, rule.Name, rule.Category, string(rule.Mode),
		rule.Threshold, rule.ScoreWeight, field, operator, value,
		now, now,
	)
	return err
}

// ListRules returns the tenant's rules plus platform defaults; the
// catalog resolver merges them with tenant precedence.
func (r *SQLRepository) ListRules(ctx context.Context, tenantID string) ([]*domain.RiskRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, rule_code, name, category, mode,
			   threshold, score_weight, expr_field, expr_operator, expr_value
		FROM risk_rules
		WHERE tenant_id = ? OR tenant_id = ''
		ORDER BY rule_code
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RiskRule
	for rows.Next() {
		var rule domain.RiskRule
		var mode string
		var category, field, operator, value sql.NullString

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.RuleCode, &rule.Name, &category, &mode,
			&rule.Threshold, &rule.ScoreWeight, &field, &operator, &value,
		); err != nil {
			return nil, err
		}

		rule.Category = category.String
		rule.Mode = domain.RuleMode(mode)
		if field.Valid && field.String != "" {
			rule.Expression = &domain.RuleExpression{
				Field:    field.String,
				Operator: operator.String,
				Value:    value.String,
			}
		}

		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveRuleGroup stores a compound rule group; conditions serialize as JSON.
func (r *SQLRepository) SaveRuleGroup(ctx context.Context, group *domain.RuleGroup) error {
	if group.TenantID == "" {
		return fmt.Errorf("%w: rule groups are tenant-scoped", domain.ErrInvalidInput)
	}

	conditions, err := json.Marshal(group.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO rule_groups (
			id, tenant_id, name, category, logical_operator,
			risk_points, mode, conditions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			logical_operator = excluded.logical_operator,
			risk_points = excluded.risk_points,
			mode = excluded.mode,
			conditions = excluded.conditions,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		group.ID, group.TenantID, group.Name, group.Category, string(group.LogicalOperator),
		group.RiskPoints, string(group.Mode), string(conditions),
		now, now,
	)
	return err
}

// ListRuleGroups returns the tenant's rule groups.
func (r *SQLRepository) ListRuleGroups(ctx context.Context, tenantID string) ([]*domain.RuleGroup, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, category, logical_operator,
			   risk_points, mode, conditions
		FROM rule_groups
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.RuleGroup
	for rows.Next() {
		var g domain.RuleGroup
		var op, mode, conditions string
		var category sql.NullString

		if err := rows.Scan(
			&g.ID, &g.TenantID, &g.Name, &category, &op,
			&g.RiskPoints, &mode, &conditions,
		); err != nil {
			return nil, err
		}

		g.Category = category.String
		g.LogicalOperator = domain.LogicalOperator(op)
		g.Mode = domain.RuleMode(mode)
		if err := json.Unmarshal([]byte(conditions), &g.Conditions); err != nil {
			return nil, fmt.Errorf("corrupt conditions for group %s: %w", g.ID, err)
		}

		groups = append(groups, &g)
	}

	return groups, rows.Err()
}

// GetOrCreateProfile loads a customer profile, inserting a zero-history
// row on first sight of the customer.
func (r *SQLRepository) GetOrCreateProfile(ctx context.Context, tenantID, customerID string) (*domain.CustomerProfile, error) {
	if tenantID == "" || customerID == "" {
		return nil, fmt.Errorf("%w: tenantID and customerID are required", domain.ErrInvalidInput)
	}

	p, err := r.getProfile(ctx, tenantID, customerID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	fresh := domain.NewCustomerProfile(tenantID, customerID)
	insert := `
		INSERT INTO customer_profiles (
			customer_id, tenant_id, total_transactions, total_volume,
			average_transaction_amount, max_transaction_amount,
			flagged_transaction_count, rejected_transaction_count,
			risk_tier, version, created_at, updated_at
		) VALUES (?, ?, 0, '0', '0', '0', 0, 0, ?, 0, ?, ?)
		ON CONFLICT (tenant_id, customer_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, r.rebind(insert),
		customerID, tenantID, string(domain.TierUnknown), fresh.CreatedAt, fresh.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	// Re-read: a concurrent creator may have won the insert race.
	return r.getProfile(ctx, tenantID, customerID)
}

func (r *SQLRepository) getProfile(ctx context.Context, tenantID, customerID string) (*domain.CustomerProfile, error) {
	query := `
		SELECT customer_id, tenant_id, total_transactions, total_volume,
			   average_transaction_amount, max_transaction_amount,
			   flagged_transaction_count, rejected_transaction_count,
			   first_transaction_at, last_transaction_at,
			   risk_tier, version, created_at, updated_at
		FROM customer_profiles
		WHERE tenant_id = ? AND customer_id = ?
	`

	var p domain.CustomerProfile
	var volume, average, max, tier string
	var first, last sql.NullTime

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID).Scan(
		&p.CustomerID, &p.TenantID, &p.TotalTransactions, &volume,
		&average, &max,
		&p.FlaggedTransactionCount, &p.RejectedTransactionCount,
		&first, &last,
		&tier, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if p.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return nil, fmt.Errorf("corrupt profile volume: %w", err)
	}
	if p.AverageTransactionAmount, err = decimal.NewFromString(average); err != nil {
		return nil, fmt.Errorf("corrupt profile average: %w", err)
	}
	if p.MaxTransactionAmount, err = decimal.NewFromString(max); err != nil {
		return nil, fmt.Errorf("corrupt profile max: %w", err)
	}
	if first.Valid {
		t := first.Time
		p.FirstTransactionAt = &t
	}
	if last.Valid {
		t := last.Time
		p.LastTransactionAt = &t
	}
	p.RiskTier = domain.RiskTier(tier)

	return &p, nil
}

// SaveProfile persists profile aggregates guarded by the version token.
// Returns domain.ErrVersionConflict when a concurrent writer won.
func (r *SQLRepository) SaveProfile(ctx context.Context, p *domain.CustomerProfile) error {
	query := `
		UPDATE customer_profiles SET
			total_transactions = ?,
			total_volume = ?,
			average_transaction_amount = ?,
			max_transaction_amount = ?,
			flagged_transaction_count = ?,
			rejected_transaction_count = ?,
			first_transaction_at = ?,
			last_transaction_at = ?,
			risk_tier = ?,
			version = version + 1,
			updated_at = ?
		WHERE tenant_id = ? AND customer_id = ? AND version = ?
	`

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		p.TotalTransactions,
		p.TotalVolume.String(),
		p.AverageTransactionAmount.String(),
		p.MaxTransactionAmount.String(),
		p.FlaggedTransactionCount,
		p.RejectedTransactionCount,
		nullTime(p.FirstTransactionAt),
		nullTime(p.LastTransactionAt),
		string(p.RiskTier),
		time.Now().UTC(),
		p.TenantID, p.CustomerID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}

	p.Version++
	return nil
}

// SaveAnalysis appends a completed analysis; factors serialize as JSON.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, analysis *domain.RiskAnalysis) error {
	if analysis.TenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	factors, err := json.Marshal(analysis.Factors)
	if err != nil {
		return fmt.Errorf("failed to encode factors: %w", err)
	}

	query := `
		INSERT INTO risk_analyses (
			id, tenant_id, transaction_id, risk_score, risk_level,
			review_status, explanation, factors, analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, analysis.TenantID, analysis.TransactionID,
		analysis.RiskScore, string(analysis.RiskLevel),
		string(analysis.ReviewStatus), analysis.Explanation,
		string(factors), analysis.AnalyzedAt,
	)
	return err
}

// GetAnalysis retrieves an analysis by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID, analysisID string) (*domain.RiskAnalysis, error) {
	query := `
		SELECT id, tenant_id, transaction_id, risk_score, risk_level,
			   review_status, explanation, factors, analyzed_at
		FROM risk_analyses
		WHERE tenant_id = ? AND id = ?
	`
	return r.scanAnalysis(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID))
}

// GetAnalysisByTransaction retrieves the latest analysis for a transaction.
func (r *SQLRepository) GetAnalysisByTransaction(ctx context.Context, tenantID, txID string) (*domain.RiskAnalysis, error) {
	query := `
		SELECT id, tenant_id, transaction_id, risk_score, risk_level,
			   review_status, explanation, factors, analyzed_at
		FROM risk_analyses
		WHERE tenant_id = ? AND transaction_id = ?
		ORDER BY analyzed_at DESC
		LIMIT 1
	`
	return r.scanAnalysis(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID))
}

func (r *SQLRepository) scanAnalysis(row *sql.Row) (*domain.RiskAnalysis, error) {
	var a domain.RiskAnalysis
	var level, status, factors string

	err := row.Scan(
		&a.ID, &a.TenantID, &a.TransactionID, &a.RiskScore, &level,
		&status, &a.Explanation, &factors, &a.AnalyzedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.RiskLevel = domain.RiskLevel(level)
	a.ReviewStatus = domain.ReviewStatus(status)
	if err := json.Unmarshal([]byte(factors), &a.Factors); err != nil {
		return nil, fmt.Errorf("corrupt factors for analysis %s: %w", a.ID, err)
	}

	return &a, nil
}

// ListWatchlistEntries returns active and inactive entries for a tenant.
func (r *SQLRepository) ListWatchlistEntries(ctx context.Context, tenantID string) ([]*domain.WatchlistEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, list_type, field_type, value,
			   notes, score_adjustment, active, created_at
		FROM watchlist_entries
		WHERE tenant_id = ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		var listType string
		var notes sql.NullString

		if err := rows.Scan(
			&e.ID, &e.TenantID, &listType, &e.FieldType, &e.Value,
			&notes, &e.ScoreAdjustment, &e.Active, &e.CreatedAt,
		); err != nil {
			return nil, err
		}

		e.ListType = domain.WatchlistType(listType)
		e.Notes = notes.String
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SaveWatchlistEntry stores a watchlist entry.
func (r *SQLRepository) SaveWatchlistEntry(ctx context.Context, entry *domain.WatchlistEntry) error {
	if entry.TenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO watchlist_entries (
			id, tenant_id, list_type, field_type, value,
			notes, score_adjustment, active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			list_type = excluded.list_type,
			field_type = excluded.field_type,
			value = excluded.value,
			notes = excluded.notes,
			score_adjustment = excluded.score_adjustment,
			active = excluded.active
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.TenantID, string(entry.ListType), entry.FieldType, entry.Value,
		entry.Notes, entry.ScoreAdjustment, entry.Active, entry.CreatedAt,
	)
	return err
}

// GetTenantSettings loads per-tenant scoring configuration.
// Returns domain.ErrNotFound when the tenant has no overrides.
func (r *SQLRepository) GetTenantSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	query := `
		SELECT tenant_id, low_threshold, medium_threshold, high_threshold,
			   auto_approve_threshold, high_risk_countries, updated_at
		FROM tenant_settings
		WHERE tenant_id = ?
	`

	var s domain.TenantSettings
	var countries sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&s.TenantID, &s.Thresholds.Low, &s.Thresholds.Medium, &s.Thresholds.High,
		&s.Thresholds.AutoApprove, &countries, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if countries.Valid && countries.String != "" {
		s.HighRiskCountries = strings.Split(countries.String, ",")
	}

	return &s, nil
}

// SaveTenantSettings upserts per-tenant scoring configuration.
func (r *SQLRepository) SaveTenantSettings(ctx context.Context, settings *domain.TenantSettings) error {
	if settings.TenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO tenant_settings (
			tenant_id, low_threshold, medium_threshold, high_threshold,
			auto_approve_threshold, high_risk_countries, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			low_threshold = excluded.low_threshold,
			medium_threshold = excluded.medium_threshold,
			high_threshold = excluded.high_threshold,
			auto_approve_threshold = excluded.auto_approve_threshold,
			high_risk_countries = excluded.high_risk_countries,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		settings.TenantID,
		settings.Thresholds.Low, settings.Thresholds.Medium, settings.Thresholds.High,
		settings.Thresholds.AutoApprove,
		strings.Join(settings.HighRiskCountries, ","),
		time.Now().UTC(),
	)
	return err
}

// Ping verifies database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $N for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
