// Package lineitem defines invoice line items produced by a generation run.
package lineitem

import (
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/shopspring/decimal"
)

// Provenance records which pricing tier supplied a line item's price.
type Provenance string

const (
	ProvenanceSubject   Provenance = "subject-specific"
	ProvenanceTenant    Provenance = "tenant"
	ProvenanceCatalogue Provenance = "catalogue-default"
	ProvenanceFallback  Provenance = "fallback-rate"
	ProvenanceMissing   Provenance = "missing"
	ProvenanceExpense   Provenance = "expense"
)

// SourceKind identifies the record a line item was derived from.
type SourceKind string

const (
	SourceSchedule   SourceKind = "schedule"
	SourceWorkedTime SourceKind = "worked_time"
	SourceExpense    SourceKind = "expense"
)

// Source is a back-reference to the originating record.
type Source struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

// LineItem is one priced (or awaiting price) invoice line. Values are treated as
// immutable; pricing produces a new value rather than editing in place.
type LineItem struct {
	ID          string           `json:"id"`
	Date        time.Time        `json:"date"`
	ItemCode    string           `json:"item_code"`
	Description string           `json:"description"`
	Hours       decimal.Decimal  `json:"hours"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Rate        decimal.Decimal  `json:"rate"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TotalPrice  decimal.Decimal  `json:"total_price"`
	Region      catalogue.Region `json:"region"`
	Tier        catalogue.Tier   `json:"tier"`
	Provenance  Provenance       `json:"provenance"`
	Cap         *decimal.Decimal `json:"cap,omitempty"`
	ExceedsCap  bool             `json:"exceeds_cap"`
	Compliant   bool             `json:"compliant"`
	PriceReason string           `json:"price_reason,omitempty"`
	OverrideID  string           `json:"override_id,omitempty"`
	Source      Source           `json:"source"`
}

// IsExpense reports whether the line came from the expense feed.
func (li LineItem) IsExpense() bool {
	return li.Source.Kind == SourceExpense
}

// Priced reports whether the line carries a usable price.
func (li LineItem) Priced() bool {
	return li.Provenance != "" && li.Provenance != ProvenanceMissing
}

// CheckedRate is the per-unit rate compared against caps. It is the resolved
// rate when known, otherwise the unit price.
func (li LineItem) CheckedRate() decimal.Decimal {
	if !li.Rate.IsZero() {
		return li.Rate
	}
	return li.UnitPrice
}
