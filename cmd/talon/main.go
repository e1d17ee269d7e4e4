// Talon - Transaction risk scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/talon/internal/api"
	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/cache"
	"github.com/opensource-finance/talon/internal/catalog"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/history"
	"github.com/opensource-finance/talon/internal/profile"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/signals"
	"github.com/opensource-finance/talon/internal/tenantconf"
	"github.com/opensource-finance/talon/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load .env if present; real environment wins.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("TALON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting talon",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultConfig()
	if os.Getenv("TALON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"ml_enabled", cfg.ML.Endpoint != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	settings := tenantconf.NewProvider(repo, cacheImpl)
	historySvc := history.NewService(repo, cacheImpl)

	evaluator := rules.NewEvaluator(historySvc, settings.HighRiskCountries)
	resolver := catalog.NewResolver(repo)

	var mlAdapter domain.MLAdapter
	if cfg.ML.Endpoint != "" {
		mlAdapter = signals.NewHTTPMLClient(cfg.ML.Endpoint, cfg.ML.Timeout)
		slog.Info("ML adapter initialized", "endpoint", cfg.ML.Endpoint)
	}
	collector := signals.NewCollector(
		signals.NewRepositoryWatchlist(repo),
		signals.NewHistoryRelationship(repo),
		mlAdapter,
	)

	profiles := profile.NewUpdater(repo)
	notifier := bus.NewAlertNotifier(busImpl)

	eng := engine.New(resolver, evaluator, collector, settings, repo, profiles, notifier)
	slog.Info("scoring engine initialized")

	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("TALON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, eng)

		var tenantIDs []string
		if envTenants := os.Getenv("TALON_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, settings, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("talon is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("talon shutdown complete")
}

// applyEnvOverrides layers environment settings over the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("TALON_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("TALON_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("TALON_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("TALON_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("TALON_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("TALON_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("TALON_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("TALON_ML_ENDPOINT"); v != "" {
		cfg.ML.Endpoint = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  TALON - Transaction Risk Scoring Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze                       - Score a transaction")
	fmt.Println("    POST /transactions                  - Enqueue for async scoring")
	fmt.Println("    GET  /analyses/{id}                 - Get analysis by ID")
	fmt.Println("    GET  /transactions/{id}             - Get transaction by ID")
	fmt.Println("    GET  /transactions/{id}/analysis    - Latest analysis for a transaction")
	fmt.Println("    POST /transactions/{id}/reanalyze   - Re-score a stored transaction")
	fmt.Println("    GET  /profiles/{customerId}         - Customer risk profile")
	fmt.Println("    GET  /rules                         - List effective rules")
	fmt.Println("    POST /rules                         - Create a rule")
	fmt.Println("    POST /rules/reload                  - Reload rule configuration")
	fmt.Println("    GET  /rule-groups                   - List compound rules")
	fmt.Println("    POST /rule-groups                   - Create a compound rule")
	fmt.Println("    GET  /watchlist                     - List watchlist entries")
	fmt.Println("    POST /watchlist                     - Add a watchlist entry")
	fmt.Println("    GET  /settings                      - Tenant scoring settings")
	fmt.Println("    PUT  /settings                      - Update tenant settings")
	fmt.Println("    GET  /health                        - Health check")
	fmt.Println("    GET  /metrics                       - Prometheus metrics")
	fmt.Println()
}
