package asset

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Price is an outcome probability in (0,1) as an 18-decimal fixed-point value.
type Price struct {
	raw uint256.Int
}

// NewPrice wraps a raw fixed-point probability.
func NewPrice(raw *uint256.Int) Price {
	var p Price
	if raw != nil {
		p.raw.Set(raw)
	}
	return p
}

// Raw returns a copy of the fixed-point value.
func (p Price) Raw() *uint256.Int {
	return new(uint256.Int).Set(&p.raw)
}

// Rate returns the probability as a decimal (e.g. 0.5435).
func (p Price) Rate() decimal.Decimal {
	return ToDecimal(&p.raw)
}

// Percent renders the probability as a percentage with two decimals.
func (p Price) Percent() string {
	return fmt.Sprintf("%s%%", p.Rate().Shift(2).StringFixed(2))
}

// String returns the decimal rate.
func (p Price) String() string {
	return p.Rate().String()
}
