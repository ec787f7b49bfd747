package pricing

import (
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/shopspring/decimal"
)

// Apply returns a copy of a skeleton line item priced by res. Time-based units
// bill hours at the resolved rate; other units bill one occurrence priced at
// rate × hours. Items without a usable price keep a zero price and carry the
// reason.
func Apply(item lineitem.LineItem, res Resolution) lineitem.LineItem {
	priced := item
	priced.Provenance = res.Provenance
	priced.Cap = res.Cap
	priced.OverrideID = res.OverrideID
	if priced.Description == "" && res.ItemName != "" {
		priced.Description = res.ItemName
	}

	if !res.HasPrice() {
		priced.Quantity = item.Hours
		priced.Rate = decimal.Zero
		priced.UnitPrice = decimal.Zero
		priced.TotalPrice = decimal.Zero
		priced.ExceedsCap = false
		priced.Compliant = false
		priced.PriceReason = res.Reason
		return priced
	}

	priced.Rate = res.Price
	if res.Unit.TimeBased() {
		priced.Quantity = item.Hours
		priced.UnitPrice = res.Price
	} else {
		priced.Quantity = decimal.NewFromInt(1)
		priced.UnitPrice = lineitem.Round(res.Price.Mul(item.Hours))
	}
	priced.TotalPrice = lineitem.Total(priced.Quantity, priced.UnitPrice)
	priced.ExceedsCap = res.ExceedsCap
	priced.Compliant = !res.ExceedsCap
	priced.PriceReason = ""
	return priced
}
