package lineitem

import "github.com/shopspring/decimal"

// Places is the number of decimal places money and hours are kept to.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds d half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Total returns round(quantity × unitPrice, 2), floored at zero.
func Total(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	total := Round(quantity.Mul(unitPrice))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Percentage returns part/whole × 100 rounded to two places, or 100 when whole
// is zero.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return hundred
	}
	return Round(part.Div(whole).Mul(hundred))
}

// Sum adds the totals of items.
func Sum(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}
