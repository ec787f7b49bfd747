package pricing

import (
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/shopspring/decimal"
)

// Scope is the owner of an override. An empty SubjectID means tenant-wide.
type Scope struct {
	TenantID  string `json:"tenant_id"`
	SubjectID string `json:"subject_id,omitempty"`
}

// TenantWide reports whether the scope applies to every subject of the tenant.
func (s Scope) TenantWide() bool {
	return s.SubjectID == ""
}

// ModeKind discriminates the Mode variants.
type ModeKind string

const (
	ModeFixed      ModeKind = "fixed"
	ModeMultiplier ModeKind = "multiplier"
)

// Mode is how an override derives its price. It is either Fixed or Multiplier.
type Mode interface {
	Kind() ModeKind
	isMode()
}

// Fixed prices an item at a set amount.
type Fixed struct {
	Amount decimal.Decimal `json:"amount"`
}

func (Fixed) Kind() ModeKind { return ModeFixed }
func (Fixed) isMode()        {}

// Multiplier prices an item as Factor × the catalogue cap. BasedOnTier selects
// the cap tier; empty means the tier being priced.
type Multiplier struct {
	Factor      decimal.Decimal `json:"factor"`
	BasedOnTier catalogue.Tier  `json:"based_on_tier,omitempty"`
}

func (Multiplier) Kind() ModeKind { return ModeMultiplier }
func (Multiplier) isMode()        {}

// Approval is the approval state of an override.
type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Valid reports whether a is a known approval state.
func (a Approval) Valid() bool {
	return a == ApprovalPending || a == ApprovalApproved || a == ApprovalRejected
}

// Override is a tenant- or subject-specific price superseding the catalogue.
type Override struct {
	ID            string         `json:"id"`
	Scope         Scope          `json:"scope"`
	ItemCode      string         `json:"item_code"`
	Mode          Mode           `json:"mode"`
	EffectiveFrom time.Time      `json:"effective_from"`
	EffectiveTo   *time.Time     `json:"effective_to,omitempty"`
	Approval      Approval       `json:"approval"`
	Active        bool           `json:"active"`
	Version       int64          `json:"version"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	History       []HistoryEntry `json:"history,omitempty"`
}

// EffectiveAt reports whether the override's date range covers t.
func (o Override) EffectiveAt(t time.Time) bool {
	if t.Before(o.EffectiveFrom) {
		return false
	}
	if o.EffectiveTo != nil && !t.Before(*o.EffectiveTo) {
		return false
	}
	return true
}

// Usable reports whether the resolver may apply the override at t.
func (o Override) Usable(t time.Time) bool {
	return o.Active && o.Approval == ApprovalApproved && o.EffectiveAt(t)
}

// FixedAmount returns the amount of a Fixed mode.
func (o Override) FixedAmount() (decimal.Decimal, bool) {
	if f, ok := o.Mode.(Fixed); ok {
		return f.Amount, true
	}
	return decimal.Decimal{}, false
}

// HistoryAction names a change recorded in an override's history.
type HistoryAction string

const (
	ActionCreated     HistoryAction = "created"
	ActionPriceChange HistoryAction = "price_changed"
	ActionApproved    HistoryAction = "approved"
	ActionRejected    HistoryAction = "rejected"
	ActionDeactivated HistoryAction = "deactivated"
)

// HistoryEntry is an append-only record of one override change.
type HistoryEntry struct {
	Version   int64            `json:"version"`
	Action    HistoryAction    `json:"action"`
	OldPrice  *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice  *decimal.Decimal `json:"new_price,omitempty"`
	Actor     string           `json:"actor"`
	Reason    string           `json:"reason,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Resolution is the outcome of walking the pricing cascade. A missing price is
// data: Provenance is ProvenanceMissing and Reason explains why.
type Resolution struct {
	ItemCode      string           `json:"item_code"`
	ItemName      string           `json:"item_name,omitempty"`
	Unit          catalogue.Unit   `json:"unit,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	Provenance    Provenance       `json:"provenance"`
	Cap           *decimal.Decimal `json:"cap,omitempty"`
	ExceedsCap    bool             `json:"exceeds_cap"`
	QuoteRequired bool             `json:"quote_required"`
	OverrideID    string           `json:"override_id,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

// HasPrice reports whether the cascade produced a usable price.
func (r Resolution) HasPrice() bool {
	return r.Provenance != ProvenanceMissing
}
