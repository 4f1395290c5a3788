package domain

import (
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
)

var maxPrice = new(uint256.Int).Sub(One, uint256.NewInt(1))

// Prices returns the YES and NO prices. They always sum to exactly One.
//
//	price_yes = (V + noAmount) / (2V + yesAmount + noAmount)
func (p *Pool) Prices() (yes, no *uint256.Int, err error) {
	yes, err = p.Price(market.Yes)
	if err != nil {
		return nil, nil, err
	}
	return yes, sub(One, yes), nil
}

// Price returns the price of one side, floored and clamped to [1 wei, One-1 wei].
func (p *Pool) Price(side market.Outcome) (*uint256.Int, error) {
	a, d, err := p.sideTerms(market.Yes)
	if err != nil {
		return nil, err
	}
	yes, err := mulDiv(a, One, d)
	if err != nil {
		return nil, err
	}
	yes = clampPrice(yes)

	if side == market.Yes {
		return yes, nil
	}
	return sub(One, yes), nil
}

func clampPrice(v *uint256.Int) *uint256.Int {
	if v.IsZero() {
		return uint256.NewInt(1)
	}
	if v.Gt(maxPrice) {
		return new(uint256.Int).Set(maxPrice)
	}
	return v
}
