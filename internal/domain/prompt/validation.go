package prompt

import (
	"math"

	"github.com/rpggio/supportbill/internal/validate"
	"github.com/shopspring/decimal"
)

// ValidateCreate reports every missing required field at once.
func ValidateCreate(req CreateRequest) error {
	return validate.Struct(req, ErrInvalidInput)
}

// ValidatePrice converts a submitted price, rejecting NaN, infinities and
// negatives.
func ValidatePrice(price float64) (decimal.Decimal, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return decimal.NewFromFloat(price), nil
}
