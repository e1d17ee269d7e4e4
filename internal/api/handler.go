package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/tenantconf"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	settings *tenantconf.Provider
	validate *validator.Validate
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, settings *tenantconf.Provider, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   eng,
		settings: settings,
		validate: validator.New(),
		version:  version,
	}
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	AnalysisID    string              `json:"analysisId"`
	TransactionID string              `json:"transactionId"`
	RiskScore     int                 `json:"riskScore"`
	RiskLevel     domain.RiskLevel    `json:"riskLevel"`
	ReviewStatus  domain.ReviewStatus `json:"reviewStatus"`
	Explanation   string              `json:"explanation"`
	Factors       []domain.RiskFactor `json:"factors"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /analyze: score one transaction synchronously.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}
	if req.Amount.Sign() <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}

	tx := req.ToTransaction(tenantID)

	analysis, err := h.engine.Score(ctx, tx)
	if err != nil {
		slog.Error("analysis failed",
			"tx_id", tx.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	resp := AnalyzeResponse{
		AnalysisID:    analysis.ID,
		TransactionID: analysis.TransactionID,
		RiskScore:     analysis.RiskScore,
		RiskLevel:     analysis.RiskLevel,
		ReviewStatus:  analysis.ReviewStatus,
		Explanation:   analysis.Explanation,
		Factors:       analysis.Factors,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Enqueue handles POST /transactions: accept a transaction for async
// scoring via the event bus. Responds 202 with the assigned ID.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}

	if req.TransactionID == "" {
		req.TransactionID = uuid.New().String()
	}

	payload, _ := json.Marshal(req)
	if err := h.bus.Publish(ctx, tenantID, domain.TopicTransactionIngested, payload); err != nil {
		slog.Error("failed to enqueue transaction", "tx_id", req.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to enqueue transaction",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"transactionId": req.TransactionID,
		"status":        "queued",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAnalysis retrieves an analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	analysis, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		h.writeLookupError(w, "analysis", analysisID, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		h.writeLookupError(w, "transaction", txID, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetTransactionAnalysis retrieves the latest analysis for a transaction.
func (h *Handler) GetTransactionAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	analysis, err := h.repo.GetAnalysisByTransaction(ctx, tenantID, txID)
	if err != nil {
		h.writeLookupError(w, "analysis", txID, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// Reanalyze handles POST /transactions/{id}/reanalyze: re-run the full
// pipeline for a stored transaction under the current rule catalog.
func (h *Handler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	analysis, err := h.engine.Reanalyze(ctx, tenantID, txID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("reanalysis failed", "tx_id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "reanalysis failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// GetProfile retrieves a customer risk profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "customerId")

	profile, err := h.repo.GetOrCreateProfile(ctx, tenantID, customerID)
	if err != nil {
		slog.Error("failed to load profile", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load profile",
		})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListRules returns the effective rule catalog for the tenant: its own
// rules merged over the platform defaults.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ListRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRuleRequest is the request body for creating or updating a rule.
type CreateRuleRequest struct {
	RuleCode    string                 `json:"ruleCode" validate:"required"`
	Name        string                 `json:"name" validate:"required"`
	Category    string                 `json:"category"`
	Mode        domain.RuleMode        `json:"mode"`
	Threshold   float64                `json:"threshold"`
	ScoreWeight int                    `json:"scoreWeight" validate:"gte=0"`
	Expression  *domain.RuleExpression `json:"expression,omitempty"`
	Global      bool                   `json:"global,omitempty"`
}

// CreateRule creates a tenant rule, or a platform default when the
// request marks it global.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeActive
	}
	switch mode {
	case domain.ModeActive, domain.ModeShadow, domain.ModeDisabled:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "mode must be ACTIVE, SHADOW, or DISABLED",
		})
		return
	}

	ruleTenant := tenantID
	if req.Global {
		ruleTenant = domain.GlobalTenantID
	}

	rule := &domain.RiskRule{
		ID:          uuid.New().String(),
		TenantID:    ruleTenant,
		RuleCode:    req.RuleCode,
		Name:        req.Name,
		Category:    req.Category,
		Mode:        mode,
		Threshold:   req.Threshold,
		ScoreWeight: req.ScoreWeight,
		Expression:  req.Expression,
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to save rule", "rule_code", rule.RuleCode, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "rule_code", rule.RuleCode, "tenant_id", ruleTenant, "mode", mode)
	writeJSON(w, http.StatusCreated, rule)
}

// ListRuleGroups returns the tenant's compound rules.
func (h *Handler) ListRuleGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	groups, err := h.repo.ListRuleGroups(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rule groups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rule groups",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ruleGroups": groups,
		"count":      len(groups),
	})
}

// CreateRuleGroupRequest is the request body for creating a compound rule.
type CreateRuleGroupRequest struct {
	Name            string                      `json:"name" validate:"required"`
	Category        string                      `json:"category"`
	LogicalOperator domain.LogicalOperator      `json:"logicalOperator" validate:"required"`
	RiskPoints      int                         `json:"riskPoints" validate:"gte=0"`
	Mode            domain.RuleMode             `json:"mode"`
	Conditions      []domain.RuleGroupCondition `json:"conditions" validate:"required,min=1"`
}

// CreateRuleGroup creates a compound rule for the tenant.
func (h *Handler) CreateRuleGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}
	if req.LogicalOperator != domain.LogicalAnd && req.LogicalOperator != domain.LogicalOr {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "logicalOperator must be AND or OR",
		})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeActive
	}

	group := &domain.RuleGroup{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		Name:            req.Name,
		Category:        req.Category,
		LogicalOperator: req.LogicalOperator,
		RiskPoints:      req.RiskPoints,
		Mode:            mode,
		Conditions:      req.Conditions,
	}

	if err := h.repo.SaveRuleGroup(ctx, group); err != nil {
		slog.Error("failed to save rule group", "name", group.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule group",
		})
		return
	}

	slog.Info("rule group created", "name", group.Name, "operator", group.LogicalOperator)
	writeJSON(w, http.StatusCreated, group)
}

// ListWatchlist returns the tenant's watchlist entries.
func (h *Handler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	entries, err := h.repo.ListWatchlistEntries(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list watchlist entries", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list watchlist entries",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// CreateWatchlistEntryRequest is the request body for adding a
// watchlist entry.
type CreateWatchlistEntryRequest struct {
	ListType        domain.WatchlistType `json:"listType" validate:"required"`
	FieldType       string               `json:"fieldType" validate:"required"`
	Value           string               `json:"value" validate:"required"`
	Notes           string               `json:"notes,omitempty"`
	ScoreAdjustment int                  `json:"scoreAdjustment,omitempty"`
}

// CreateWatchlistEntry adds an active watchlist entry for the tenant.
func (h *Handler) CreateWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateWatchlistEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}

	switch req.ListType {
	case domain.ListBlocklist, domain.ListWatchlist, domain.ListAllowlist:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "listType must be BLOCKLIST, WATCHLIST, or ALLOWLIST",
		})
		return
	}

	entry := &domain.WatchlistEntry{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		ListType:        req.ListType,
		FieldType:       req.FieldType,
		Value:           req.Value,
		Notes:           req.Notes,
		ScoreAdjustment: req.ScoreAdjustment,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.repo.SaveWatchlistEntry(ctx, entry); err != nil {
		slog.Error("failed to save watchlist entry", "value", entry.Value, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save watchlist entry",
		})
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// GetSettings returns the tenant's effective scoring settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	writeJSON(w, http.StatusOK, h.settings.Settings(ctx, tenantID))
}

// UpdateSettings replaces the tenant's scoring settings and invalidates
// the cached copy.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var settings domain.TenantSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	settings.TenantID = tenantID
	settings.UpdatedAt = time.Now().UTC()

	if err := h.repo.SaveTenantSettings(ctx, &settings); err != nil {
		slog.Error("failed to save tenant settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save settings",
		})
		return
	}

	h.settings.Invalidate(ctx, tenantID)

	writeJSON(w, http.StatusOK, &settings)
}

// ReloadRules invalidates cached tenant configuration so subsequent
// analyses pick up rule and settings changes immediately.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	h.settings.Invalidate(ctx, tenantID)

	rules, err := h.repo.ListRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rules after reload", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules",
		})
		return
	}

	slog.Info("rules reloaded", "tenant_id", tenantID, "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(rules),
	})
}

// writeLookupError maps repository lookup failures to 404/500.
func (h *Handler) writeLookupError(w http.ResponseWriter, kind, id string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": kind + " not found",
		})
		return
	}
	slog.Error("lookup failed", "kind", kind, "id", id, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "lookup failed",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
