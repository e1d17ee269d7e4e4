// Package tenantconf resolves per-tenant scoring configuration with
// cache read-through and static defaults.
package tenantconf

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

const settingsTTL = 5 * time.Minute

// Provider serves tenant settings from cache, falling back to the
// repository and finally to static defaults.
type Provider struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewProvider creates a settings provider. The cache is optional.
func NewProvider(repo domain.Repository, cache domain.Cache) *Provider {
	return &Provider{repo: repo, cache: cache}
}

// Settings returns the tenant's effective settings. Absent or unreadable
// configuration degrades to the documented defaults, never to an error.
func (p *Provider) Settings(ctx context.Context, tenantID string) *domain.TenantSettings {
	if cached := p.fromCache(ctx, tenantID); cached != nil {
		return cached
	}

	settings, err := p.repo.GetTenantSettings(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("tenant settings unreadable, using defaults",
				"tenant_id", tenantID,
				"error", err,
			)
		}
		settings = &domain.TenantSettings{
			TenantID:   tenantID,
			Thresholds: domain.DefaultThresholds(),
		}
	}

	p.toCache(ctx, tenantID, settings)
	return settings
}

// Thresholds returns the tenant's score breakpoints.
func (p *Provider) Thresholds(ctx context.Context, tenantID string) domain.ScoringThresholds {
	return p.Settings(ctx, tenantID).Thresholds
}

// HighRiskCountries returns the tenant's high-risk country set, or the
// static default set when the tenant has no override. Satisfies
// rules.CountrySetGetter.
func (p *Provider) HighRiskCountries(ctx context.Context, tenantID string) ([]string, error) {
	settings := p.Settings(ctx, tenantID)
	if len(settings.HighRiskCountries) > 0 {
		return settings.HighRiskCountries, nil
	}
	return domain.DefaultHighRiskCountries, nil
}

// Invalidate drops the cached settings after an update.
func (p *Provider) Invalidate(ctx context.Context, tenantID string) {
	if p.cache == nil {
		return
	}
	_ = p.cache.Delete(ctx, tenantID, domain.CacheKeyTenantSettings)
}

func (p *Provider) fromCache(ctx context.Context, tenantID string) *domain.TenantSettings {
	if p.cache == nil {
		return nil
	}

	raw, err := p.cache.Get(ctx, tenantID, domain.CacheKeyTenantSettings)
	if err != nil || raw == nil {
		return nil
	}

	var settings domain.TenantSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil
	}
	return &settings
}

func (p *Provider) toCache(ctx context.Context, tenantID string, settings *domain.TenantSettings) {
	if p.cache == nil {
		return
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return
	}
	_ = p.cache.Set(ctx, tenantID, domain.CacheKeyTenantSettings, raw, settingsTTL)
}
