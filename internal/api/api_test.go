package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/catalog"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/history"
	"github.com/opensource-finance/talon/internal/profile"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/signals"
	"github.com/opensource-finance/talon/internal/tenantconf"
)

const testTenant = "tenant-001"

type testServer struct {
	srv  *Server
	repo domain.Repository
	bus  domain.EventBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "talon.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(16)
	t.Cleanup(func() { eventBus.Close() })

	settings := tenantconf.NewProvider(repo, nil)
	historySvc := history.NewService(repo, nil)
	evaluator := rules.NewEvaluator(historySvc, settings.HighRiskCountries)
	collector := signals.NewCollector(signals.NewRepositoryWatchlist(repo), nil, nil)
	updater := profile.NewUpdater(repo)

	eng := engine.New(
		catalog.NewResolver(repo),
		evaluator,
		collector,
		settings,
		repo,
		updater,
		nil,
	)

	srv := NewServer(domain.ServerConfig{}, repo, nil, eventBus, eng, settings, "test")
	return &testServer{srv: srv, repo: repo, bus: eventBus}
}

func (s *testServer) seedRule(t *testing.T, code string, mode domain.RuleMode, threshold float64, weight int) {
	t.Helper()
	err := s.repo.SaveRule(context.Background(), &domain.RiskRule{
		ID:          "rule-" + code,
		TenantID:    testTenant,
		RuleCode:    code,
		Name:        code,
		Mode:        mode,
		Threshold:   threshold,
		ScoreWeight: weight,
	})
	if err != nil {
		t.Fatalf("seed rule %s: %v", code, err)
	}
}

// do executes a request against the router with the tenant header set.
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, method, path, testTenant, body)
}

func (s *testServer) doAs(t *testing.T, method, path, tenantID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func analyzeRequest(amount string) map[string]interface{} {
	return map[string]interface{}{
		"transactionId":       "tx-001",
		"senderId":            "cust-001",
		"receiverId":          "cust-002",
		"amount":              amount,
		"sourceCurrency":      "USD",
		"destinationCurrency": "EUR",
		"sourceCountry":       "US",
		"destinationCountry":  "DE",
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.doAs(t, http.MethodPost, "/analyze", "", analyzeRequest("100"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing tenant header should be 400, got %d", rec.Code)
	}

	// Operational endpoints stay open.
	if rec := s.doAs(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health must not require a tenant, got %d", rec.Code)
	}
	if rec := s.doAs(t, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("ready must not require a tenant, got %d", rec.Code)
	}
	if rec := s.doAs(t, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics must not require a tenant, got %d", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)
	s.seedRule(t, "HIGH_AMOUNT", domain.ModeActive, 5000, 30)

	t.Run("HappyPath", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/analyze", analyzeRequest("6000"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp AnalyzeResponse
		decodeJSON(t, rec, &resp)
		if resp.RiskScore != 30 || resp.RiskLevel != domain.RiskMedium {
			t.Errorf("expected 30/MEDIUM, got %d/%s", resp.RiskScore, resp.RiskLevel)
		}
		if resp.ReviewStatus != domain.ReviewPending {
			t.Errorf("expected PENDING, got %s", resp.ReviewStatus)
		}
		if resp.TransactionID != "tx-001" || resp.AnalysisID == "" {
			t.Errorf("response IDs missing: %+v", resp)
		}
		if resp.Metadata.Version != "test" {
			t.Errorf("version metadata missing: %+v", resp.Metadata)
		}
		if len(resp.Factors) != 1 {
			t.Errorf("expected one factor, got %+v", resp.Factors)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte("{not json")))
		req.Header.Set("X-Tenant-ID", testTenant)
		rec := httptest.NewRecorder()
		s.srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		body := analyzeRequest("100")
		delete(body, "senderId")
		rec := s.do(t, http.MethodPost, "/analyze", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("missing senderId should be 400, got %d", rec.Code)
		}
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/analyze", analyzeRequest("-5"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("negative amount should be 400, got %d", rec.Code)
		}
	})
}

func TestRetrieval(t *testing.T) {
	s := newTestServer(t)
	s.seedRule(t, "HIGH_AMOUNT", domain.ModeActive, 5000, 30)

	rec := s.do(t, http.MethodPost, "/analyze", analyzeRequest("6000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	decodeJSON(t, rec, &resp)

	t.Run("GetTransaction", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/transactions/tx-001", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var tx domain.Transaction
		decodeJSON(t, rec, &tx)
		if tx.ID != "tx-001" || tx.TenantID != testTenant {
			t.Errorf("transaction mismatch: %+v", tx)
		}
	})

	t.Run("GetAnalysis", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/analyses/"+resp.AnalysisID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var analysis domain.RiskAnalysis
		decodeJSON(t, rec, &analysis)
		if analysis.ID != resp.AnalysisID || analysis.RiskScore != 30 {
			t.Errorf("analysis mismatch: %+v", analysis)
		}
	})

	t.Run("GetTransactionAnalysis", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/transactions/tx-001/analysis", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var analysis domain.RiskAnalysis
		decodeJSON(t, rec, &analysis)
		if analysis.TransactionID != "tx-001" {
			t.Errorf("analysis mismatch: %+v", analysis)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		for _, path := range []string{
			"/transactions/missing",
			"/analyses/missing",
			"/transactions/missing/analysis",
		} {
			if rec := s.do(t, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", path, rec.Code)
			}
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		rec := s.doAs(t, http.MethodGet, "/transactions/tx-001", "tenant-other", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("cross-tenant read should be 404, got %d", rec.Code)
		}
	})
}

func TestReanalyze(t *testing.T) {
	s := newTestServer(t)
	s.seedRule(t, "HIGH_AMOUNT", domain.ModeActive, 5000, 30)

	rec := s.do(t, http.MethodPost, "/analyze", analyzeRequest("6000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: %d", rec.Code)
	}
	var first AnalyzeResponse
	decodeJSON(t, rec, &first)

	rec = s.do(t, http.MethodPost, "/transactions/tx-001/reanalyze", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reanalyze: %d %s", rec.Code, rec.Body.String())
	}
	var second domain.RiskAnalysis
	decodeJSON(t, rec, &second)
	if second.ID == first.AnalysisID {
		t.Error("re-analysis must produce a new analysis record")
	}

	if rec := s.do(t, http.MethodPost, "/transactions/missing/reanalyze", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown transaction should be 404, got %d", rec.Code)
	}
}

func TestEnqueue(t *testing.T) {
	s := newTestServer(t)

	received := make(chan []byte, 1)
	sub, err := s.bus.Subscribe(context.Background(), testTenant, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		received <- msg.Payload
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })

	rec := s.do(t, http.MethodPost, "/transactions", analyzeRequest("100"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["transactionId"] != "tx-001" || resp["status"] != "queued" {
		t.Errorf("unexpected response: %v", resp)
	}

	select {
	case payload := <-received:
		var req domain.TransactionRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			t.Fatalf("unmarshal published request: %v", err)
		}
		if req.TransactionID != "tx-001" {
			t.Errorf("published request mismatch: %+v", req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published transaction")
	}
}

func TestGetProfile(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/profiles/cust-001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p domain.CustomerProfile
	decodeJSON(t, rec, &p)
	if p.CustomerID != "cust-001" || p.RiskTier != domain.TierUnknown {
		t.Errorf("fresh profile mismatch: %+v", p)
	}
}

func TestRuleManagement(t *testing.T) {
	s := newTestServer(t)

	t.Run("Create", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/rules", map[string]interface{}{
			"ruleCode":    "HIGH_AMOUNT",
			"name":        "High amount",
			"mode":        "SHADOW",
			"threshold":   10000,
			"scoreWeight": 30,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var rule domain.RiskRule
		decodeJSON(t, rec, &rule)
		if rule.TenantID != testTenant || rule.Mode != domain.ModeShadow {
			t.Errorf("rule mismatch: %+v", rule)
		}
	})

	t.Run("InvalidMode", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/rules", map[string]interface{}{
			"ruleCode": "HIGH_AMOUNT",
			"name":     "High amount",
			"mode":     "DRY_RUN",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("unknown mode should be 400, got %d", rec.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/rules", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Rules []domain.RiskRule `json:"rules"`
			Count int               `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 || resp.Rules[0].RuleCode != "HIGH_AMOUNT" {
			t.Errorf("unexpected rule list: %+v", resp)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/rules/reload", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 rule after reload, got %d", resp.Count)
		}
	})
}

func TestRuleGroupManagement(t *testing.T) {
	s := newTestServer(t)

	t.Run("InvalidOperator", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/rule-groups", map[string]interface{}{
			"name":            "Bad group",
			"logicalOperator": "XOR",
			"conditions": []map[string]interface{}{
				{"field": "Amount", "operator": ">=", "value": "5000"},
			},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("XOR should be 400, got %d", rec.Code)
		}
	})

	t.Run("EmptyConditions", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/rule-groups", map[string]interface{}{
			"name":            "Empty group",
			"logicalOperator": "AND",
			"conditions":      []map[string]interface{}{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("empty conditions should be 400, got %d", rec.Code)
		}
	})

	t.Run("CreateAndList", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/rule-groups", map[string]interface{}{
			"name":            "High value cross border",
			"logicalOperator": "AND",
			"riskPoints":      30,
			"conditions": []map[string]interface{}{
				{"field": "Amount", "operator": ">=", "value": "5000", "orderIndex": 0},
				{"field": "DestinationCountry", "operator": "!=", "value": "US", "orderIndex": 1},
			},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = s.do(t, http.MethodGet, "/rule-groups", nil)
		var resp struct {
			RuleGroups []domain.RuleGroup `json:"ruleGroups"`
			Count      int                `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 || len(resp.RuleGroups[0].Conditions) != 2 {
			t.Errorf("unexpected group list: %+v", resp)
		}
		if resp.RuleGroups[0].Mode != domain.ModeActive {
			t.Errorf("default mode should be ACTIVE, got %s", resp.RuleGroups[0].Mode)
		}
	})
}

func TestWatchlistManagement(t *testing.T) {
	s := newTestServer(t)

	t.Run("InvalidListType", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/watchlist", map[string]interface{}{
			"listType":  "GREYLIST",
			"fieldType": "customer_id",
			"value":     "cust-bad",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("unknown list type should be 400, got %d", rec.Code)
		}
	})

	t.Run("CreateAndList", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/watchlist", map[string]interface{}{
			"listType":  "BLOCKLIST",
			"fieldType": "customer_id",
			"value":     "cust-bad",
			"notes":     "sanctions match",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var entry domain.WatchlistEntry
		decodeJSON(t, rec, &entry)
		if !entry.Active || entry.ListType != domain.ListBlocklist {
			t.Errorf("entry mismatch: %+v", entry)
		}

		rec = s.do(t, http.MethodGet, "/watchlist", nil)
		var resp struct {
			Entries []domain.WatchlistEntry `json:"entries"`
			Count   int                     `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 || resp.Entries[0].Value != "cust-bad" {
			t.Errorf("unexpected entries: %+v", resp)
		}
	})
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)

	t.Run("Defaults", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/settings", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var settings domain.TenantSettings
		decodeJSON(t, rec, &settings)
		if settings.Thresholds != domain.DefaultThresholds() {
			t.Errorf("expected default thresholds, got %+v", settings.Thresholds)
		}
	})

	t.Run("Update", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/settings", map[string]interface{}{
			"thresholds": map[string]int{
				"low": 10, "medium": 30, "high": 60, "autoApprove": 5,
			},
			"highRiskCountries": []string{"IR", "KP"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = s.do(t, http.MethodGet, "/settings", nil)
		var settings domain.TenantSettings
		decodeJSON(t, rec, &settings)
		want := domain.ScoringThresholds{Low: 10, Medium: 30, High: 60, AutoApprove: 5}
		if settings.Thresholds != want {
			t.Errorf("thresholds not updated: %+v", settings.Thresholds)
		}
		if len(settings.HighRiskCountries) != 2 {
			t.Errorf("countries not updated: %+v", settings.HighRiskCountries)
		}
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.doAs(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["status"] != "healthy" || resp["version"] != "test" {
		t.Errorf("unexpected health response: %v", resp)
	}
}
