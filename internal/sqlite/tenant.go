package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// TenantRepository implements tenant.Repository for SQLite
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Get retrieves a tenant's billing settings
func (r *TenantRepository) Get(ctx context.Context, tenantID string) (*tenant.Settings, error) {
	var s tenant.Settings
	var rate decimal.NullDecimal
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, fallback_rate, catalogue_defaults, default_region, default_tier, updated_at
		FROM tenant_settings
		WHERE tenant_id = ?
	`, tenantID).Scan(
		&s.TenantID,
		&rate,
		&s.CatalogueDefaults,
		&s.DefaultRegion,
		&s.DefaultTier,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant settings: %w", err)
	}
	s.FallbackRate = decimalPtr(rate)
	return &s, nil
}

// Upsert writes a tenant's billing settings
func (r *TenantRepository) Upsert(ctx context.Context, s *tenant.Settings) error {
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, fallback_rate, catalogue_defaults, default_region, default_tier, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			fallback_rate = excluded.fallback_rate,
			catalogue_defaults = excluded.catalogue_defaults,
			default_region = excluded.default_region,
			default_tier = excluded.default_tier,
			updated_at = excluded.updated_at
	`,
		s.TenantID,
		nullDecimal(s.FallbackRate),
		boolInt(s.CatalogueDefaults),
		s.DefaultRegion,
		s.DefaultTier,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant settings: %w", err)
	}
	s.UpdatedAt = updatedAt
	return nil
}
