package tenant

import (
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/shopspring/decimal"
)

// Settings holds a tenant's billing defaults. CatalogueDefaults bills items
// that have no override at the catalogue cap.
type Settings struct {
	TenantID          string           `json:"tenant_id"`
	FallbackRate      *decimal.Decimal `json:"fallback_rate,omitempty"`
	CatalogueDefaults bool             `json:"catalogue_defaults"`
	DefaultRegion     catalogue.Region `json:"default_region"`
	DefaultTier       catalogue.Tier   `json:"default_tier"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
