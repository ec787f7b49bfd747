package pricing

import (
	"context"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/shopspring/decimal"
)

// Provenance is re-exported so resolver callers need not import lineitem.
type Provenance = lineitem.Provenance

const (
	ProvenanceSubject   = lineitem.ProvenanceSubject
	ProvenanceTenant    = lineitem.ProvenanceTenant
	ProvenanceCatalogue = lineitem.ProvenanceCatalogue
	ProvenanceFallback  = lineitem.ProvenanceFallback
	ProvenanceMissing   = lineitem.ProvenanceMissing
)

// OverrideRepository persists pricing overrides.
type OverrideRepository interface {
	// FindActive returns the active override at exactly scope for itemCode.
	FindActive(ctx context.Context, scope Scope, itemCode string) (*Override, error)
	Get(ctx context.Context, tenantID, id string) (*Override, error)
	// Create stores o and its first history entry in one transaction.
	Create(ctx context.Context, o *Override, entry HistoryEntry) error
	// Update stores o if its stored version is expectedVersion and appends
	// entry, in one transaction.
	Update(ctx context.Context, o *Override, expectedVersion int64, entry HistoryEntry) error
	History(ctx context.Context, overrideID string) ([]HistoryEntry, error)
	List(ctx context.Context, tenantID string, opts ListOverridesOptions) ([]Override, error)
}

// Policy is a tenant's pricing policy for items without an override.
// CatalogueDefaults enables billing at the catalogue cap; FallbackRate, when
// set, is the flat last-resort rate.
type Policy struct {
	CatalogueDefaults bool
	FallbackRate      *decimal.Decimal
}

// PolicySource supplies tenant pricing policies.
type PolicySource interface {
	PricingPolicy(ctx context.Context, tenantID string) (Policy, error)
}

// CatalogueLookup is the subset of the catalogue the pricing package reads.
type CatalogueLookup = catalogue.Lookup

// Auditor receives audit events. Implementations must not fail the caller.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}
