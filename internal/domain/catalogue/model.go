package catalogue

import (
	"github.com/shopspring/decimal"
)

// Unit is the unit of measure a support item is billed in.
type Unit string

const (
	UnitHour Unit = "hour"
	UnitEach Unit = "each"
	UnitDay  Unit = "day"
	UnitKM   Unit = "km"
)

// TimeBased reports whether quantities of this unit are hours worked.
func (u Unit) TimeBased() bool {
	return u == UnitHour
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitHour, UnitEach, UnitDay, UnitKM:
		return true
	}
	return false
}

// Tier is the intensity tier a cap applies to.
type Tier string

const (
	TierStandard      Tier = "standard"
	TierHighIntensity Tier = "high_intensity"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierStandard || t == TierHighIntensity
}

// Region identifies a pricing region of the price guide, e.g. "NSW" or "remote".
type Region string

// SupportItem is a billable item in the reference catalogue.
type SupportItem struct {
	Code          string                             `json:"code" yaml:"code"`
	Name          string                             `json:"name" yaml:"name"`
	Unit          Unit                               `json:"unit" yaml:"unit"`
	Caps          map[Tier]map[Region]decimal.Decimal `json:"caps" yaml:"-"`
	QuoteRequired bool                               `json:"quote_required" yaml:"quote_required"`
}

// Cap returns the price cap for region and tier. A missing high-intensity cap
// falls back to the standard tier.
func (i SupportItem) Cap(region Region, tier Tier) (decimal.Decimal, bool) {
	if tier == "" {
		tier = TierStandard
	}
	if amount, ok := i.Caps[tier][region]; ok {
		return amount, true
	}
	if tier == TierHighIntensity {
		if amount, ok := i.Caps[TierStandard][region]; ok {
			return amount, true
		}
	}
	return decimal.Decimal{}, false
}

// SetCap records a cap, allocating the nested maps as needed.
func (i *SupportItem) SetCap(tier Tier, region Region, amount decimal.Decimal) {
	if i.Caps == nil {
		i.Caps = make(map[Tier]map[Region]decimal.Decimal)
	}
	if i.Caps[tier] == nil {
		i.Caps[tier] = make(map[Region]decimal.Decimal)
	}
	i.Caps[tier][region] = amount
}

// SearchResult is a catalogue search hit.
type SearchResult struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Unit    Unit    `json:"unit"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}
