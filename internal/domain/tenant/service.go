package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// Defaults are applied to tenants without stored settings.
type Defaults struct {
	Region            catalogue.Region
	Tier              catalogue.Tier
	CatalogueDefaults bool
}

// Service handles tenant billing settings.
type Service struct {
	repo     Repository
	audit    Auditor
	defaults Defaults
	logger   *slog.Logger
}

// NewService creates a new tenant settings service.
func NewService(repo Repository, auditor Auditor, defaults Defaults, logger *slog.Logger) *Service {
	if defaults.Tier == "" {
		defaults.Tier = catalogue.TierStandard
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, audit: auditor, defaults: defaults, logger: logger}
}

// Get returns stored settings, or the defaults when none are stored.
func (s *Service) Get(ctx context.Context, tenantID string) (*Settings, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidInput
	}
	settings, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Settings{
				TenantID:          tenantID,
				CatalogueDefaults: s.defaults.CatalogueDefaults,
				DefaultRegion:     s.defaults.Region,
				DefaultTier:       s.defaults.Tier,
			}, nil
		}
		return nil, fmt.Errorf("loading tenant settings: %w", err)
	}
	if settings.DefaultRegion == "" {
		settings.DefaultRegion = s.defaults.Region
	}
	if settings.DefaultTier == "" {
		settings.DefaultTier = s.defaults.Tier
	}
	return settings, nil
}

// FallbackRate returns the tenant's flat fallback rate, if configured.
func (s *Service) FallbackRate(ctx context.Context, tenantID string) (decimal.Decimal, bool, error) {
	settings, err := s.Get(ctx, tenantID)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	if settings.FallbackRate == nil {
		return decimal.Decimal{}, false, nil
	}
	return *settings.FallbackRate, true, nil
}

// PricingPolicy returns the tenant's policy for items without an override.
func (s *Service) PricingPolicy(ctx context.Context, tenantID string) (pricing.Policy, error) {
	settings, err := s.Get(ctx, tenantID)
	if err != nil {
		return pricing.Policy{}, err
	}
	return pricing.Policy{
		CatalogueDefaults: settings.CatalogueDefaults,
		FallbackRate:      settings.FallbackRate,
	}, nil
}

// SetCatalogueDefaults turns billing at the catalogue cap on or off.
func (s *Service) SetCatalogueDefaults(ctx context.Context, tenantID string, enabled bool, actor string) (*Settings, error) {
	current, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if current.CatalogueDefaults == enabled {
		return current, nil
	}

	updated := *current
	updated.CatalogueDefaults = enabled
	updated.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving tenant settings: %w", err)
	}

	s.record(ctx, actor, current, &updated)
	return &updated, nil
}

// SetFallbackRate sets the tenant's fallback rate; nil clears it.
func (s *Service) SetFallbackRate(ctx context.Context, tenantID string, rate *decimal.Decimal, actor string) (*Settings, error) {
	if rate != nil && !rate.IsPositive() {
		return nil, fmt.Errorf("%w: fallback rate must be greater than 0", ErrInvalidInput)
	}
	current, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.FallbackRate = rate
	updated.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving tenant settings: %w", err)
	}

	s.record(ctx, actor, current, &updated)
	return &updated, nil
}

// SetDefaults sets the default region and tier used when a subject has none.
func (s *Service) SetDefaults(ctx context.Context, tenantID string, region catalogue.Region, tier catalogue.Tier, actor string) (*Settings, error) {
	if tier != "" && !tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, tier)
	}
	current, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if region != "" {
		updated.DefaultRegion = region
	}
	if tier != "" {
		updated.DefaultTier = tier
	}
	updated.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving tenant settings: %w", err)
	}

	s.record(ctx, actor, current, &updated)
	return &updated, nil
}

// Seed stores fallback rates for tenants that have none yet.
func (s *Service) Seed(ctx context.Context, rates map[string]decimal.Decimal) error {
	for tenantID, rate := range rates {
		current, err := s.Get(ctx, tenantID)
		if err != nil {
			return err
		}
		if current.FallbackRate != nil {
			continue
		}
		r := rate
		if _, err := s.SetFallbackRate(ctx, tenantID, &r, "config"); err != nil {
			return fmt.Errorf("seeding fallback rate for %s: %w", tenantID, err)
		}
		s.logger.Info("seeded fallback rate", "tenant_id", tenantID, "rate", r.StringFixed(2))
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor string, before, after *Settings) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Event{
		TenantID:   after.TenantID,
		Action:     audit.ActionTenantSettingsChange,
		EntityType: "tenant_settings",
		EntityID:   after.TenantID,
		Actor:      actor,
		OldValues:  settingsValues(before),
		NewValues:  settingsValues(after),
	})
}

func settingsValues(s *Settings) map[string]any {
	values := map[string]any{
		"default_region":     string(s.DefaultRegion),
		"default_tier":       string(s.DefaultTier),
		"catalogue_defaults": s.CatalogueDefaults,
	}
	if s.FallbackRate != nil {
		values["fallback_rate"] = s.FallbackRate.StringFixed(2)
	}
	return values
}
