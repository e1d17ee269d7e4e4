package repository

// Schema definitions for the Talon database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    receiver_id TEXT,
    amount TEXT NOT NULL,
    amount_numeric REAL NOT NULL,
    source_currency TEXT NOT NULL,
    destination_currency TEXT NOT NULL,
    source_country TEXT NOT NULL,
    destination_country TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(tenant_id, sender_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(tenant_id, receiver_id, created_at);
`

const schemaRiskRules = `
CREATE TABLE IF NOT EXISTS risk_rules (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    rule_code TEXT NOT NULL,
    name TEXT NOT NULL,
    category TEXT,
    mode TEXT NOT NULL DEFAULT 'ACTIVE',
    threshold REAL NOT NULL DEFAULT 0,
    score_weight INTEGER NOT NULL DEFAULT 0,
    expr_field TEXT,
    expr_operator TEXT,
    expr_value TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (tenant_id, rule_code)
);

CREATE INDEX IF NOT EXISTS idx_risk_rules_tenant ON risk_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_risk_rules_code ON risk_rules(rule_code);
`

const schemaRuleGroups = `
CREATE TABLE IF NOT EXISTS rule_groups (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    category TEXT,
    logical_operator TEXT NOT NULL,
    risk_points INTEGER NOT NULL DEFAULT 0,
    mode TEXT NOT NULL DEFAULT 'ACTIVE',
    conditions TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_groups_tenant ON rule_groups(tenant_id);
`

const schemaCustomerProfiles = `
CREATE TABLE IF NOT EXISTS customer_profiles (
    customer_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    total_volume TEXT NOT NULL DEFAULT '0',
    average_transaction_amount TEXT NOT NULL DEFAULT '0',
    max_transaction_amount TEXT NOT NULL DEFAULT '0',
    flagged_transaction_count INTEGER NOT NULL DEFAULT 0,
    rejected_transaction_count INTEGER NOT NULL DEFAULT 0,
    first_transaction_at TIMESTAMP,
    last_transaction_at TIMESTAMP,
    risk_tier TEXT NOT NULL DEFAULT 'UNKNOWN',
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, customer_id)
);
`

const schemaRiskAnalyses = `
CREATE TABLE IF NOT EXISTS risk_analyses (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    review_status TEXT NOT NULL,
    explanation TEXT NOT NULL,
    factors TEXT NOT NULL,
    analyzed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_risk_analyses_tenant ON risk_analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_risk_analyses_tx ON risk_analyses(tenant_id, transaction_id);
CREATE INDEX IF NOT EXISTS idx_risk_analyses_level ON risk_analyses(tenant_id, risk_level);
`

const schemaWatchlistEntries = `
CREATE TABLE IF NOT EXISTS watchlist_entries (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    list_type TEXT NOT NULL,
    field_type TEXT NOT NULL,
    value TEXT NOT NULL,
    notes TEXT,
    score_adjustment INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_watchlist_tenant ON watchlist_entries(tenant_id, active);
`

const schemaTenantSettings = `
CREATE TABLE IF NOT EXISTS tenant_settings (
    tenant_id TEXT PRIMARY KEY,
    low_threshold INTEGER NOT NULL DEFAULT 25,
    medium_threshold INTEGER NOT NULL DEFAULT 50,
    high_threshold INTEGER NOT NULL DEFAULT 75,
    auto_approve_threshold INTEGER NOT NULL DEFAULT 25,
    high_risk_countries TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRiskRules,
		schemaRuleGroups,
		schemaCustomerProfiles,
		schemaRiskAnalyses,
		schemaWatchlistEntries,
		schemaTenantSettings,
	}
}
