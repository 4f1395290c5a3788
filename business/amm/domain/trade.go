package domain

import (
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

// BuyQuote is the full result of a buy against the current pool state.
type BuyQuote struct {
	Side     market.Outcome
	AmountIn *uint256.Int
	Fee      *uint256.Int
	Net      *uint256.Int
	Shares   *uint256.Int
}

// SellQuote is the full result of a sell against the current pool state.
type SellQuote struct {
	Side   market.Outcome
	Shares *uint256.Int
	Gross  *uint256.Int
	Fee    *uint256.Int
	Payout *uint256.Int
}

func checkSide(side market.Outcome) error {
	if !side.IsSide() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("outcome must be yes or no"))
	}
	return nil
}

// QuoteBuy prices a buy of side for amountIn collateral.
//
// The net collateral c buys s shares at the average of the pre- and
// post-trade prices. With A the side's price numerator and D the common
// denominator, the post-trade price is (A+s)/(D+s) and s solves
//
//	(A+D)s² + 2D(A-c)s - 2cD² = 0
//	s = D·(sqrt((A-c)² + 2c(A+D)) - (A-c)) / (A+D)
//
// Both the square root and the division floor, so the pool never gives
// out more shares than c pays for.
func (p *Pool) QuoteBuy(side market.Outcome, amountIn *uint256.Int) (BuyQuote, error) {
	if err := checkSide(side); err != nil {
		return BuyQuote{}, err
	}
	if amountIn == nil || amountIn.IsZero() {
		return BuyQuote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("amount must be positive"))
	}

	fee, err := FeeOf(amountIn, p.FeeBps)
	if err != nil {
		return BuyQuote{}, err
	}
	net := sub(amountIn, fee)

	shares, err := p.sharesFor(side, net)
	if err != nil {
		return BuyQuote{}, err
	}
	if shares.IsZero() {
		return BuyQuote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("trade too small"))
	}

	return BuyQuote{
		Side:     side,
		AmountIn: new(uint256.Int).Set(amountIn),
		Fee:      fee,
		Net:      net,
		Shares:   shares,
	}, nil
}

func (p *Pool) sharesFor(side market.Outcome, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return new(uint256.Int), nil
	}
	a, d, err := p.sideTerms(side)
	if err != nil {
		return nil, err
	}
	ad, err := add(a, d)
	if err != nil {
		return nil, err
	}

	aGeC := !a.Lt(c)
	var diff *uint256.Int
	if aGeC {
		diff = sub(a, c)
	} else {
		diff = sub(c, a)
	}

	diffSq, err := mul(diff, diff)
	if err != nil {
		return nil, err
	}
	cad, err := mul(c, ad)
	if err != nil {
		return nil, err
	}
	cad2, err := mul(cad, two)
	if err != nil {
		return nil, err
	}
	disc, err := add(diffSq, cad2)
	if err != nil {
		return nil, err
	}
	root := new(uint256.Int).Sqrt(disc)

	var num *uint256.Int
	if aGeC {
		// disc >= diff², so floor(sqrt(disc)) >= diff
		num = sub(root, diff)
	} else {
		if num, err = add(root, diff); err != nil {
			return nil, err
		}
	}
	return mulDiv(d, num, ad)
}

// ApplyBuy commits a quote produced by QuoteBuy on the same state.
func (p *Pool) ApplyBuy(q BuyQuote) error {
	fee, err := add(&p.TotalFee, q.Fee)
	if err != nil {
		return err
	}
	trade, err := add(&p.TradeCollateral, q.Net)
	if err != nil {
		return err
	}
	reserve, err := add(p.reserve(q.Side), q.Shares)
	if err != nil {
		return err
	}
	supply, err := add(p.supply(q.Side), q.Shares)
	if err != nil {
		return err
	}

	p.TotalFee.Set(fee)
	p.TradeCollateral.Set(trade)
	p.reserve(q.Side).Set(reserve)
	p.supply(q.Side).Set(supply)
	return nil
}

// QuoteSell prices selling shares of side back to the pool. Gross proceeds
// are the shares times the average of the pre- and post-trade prices:
//
//	gross = s·(A(D-s) + (A-s)D) / (2D(D-s))
//
// The fee is charged on gross.
func (p *Pool) QuoteSell(side market.Outcome, shares *uint256.Int) (SellQuote, error) {
	if err := checkSide(side); err != nil {
		return SellQuote{}, err
	}
	if shares == nil || shares.IsZero() {
		return SellQuote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("shares must be positive"))
	}
	if shares.Gt(p.reserve(side)) {
		return SellQuote{}, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext("sell exceeds pool reserve"))
	}

	a, d, err := p.sideTerms(side)
	if err != nil {
		return SellQuote{}, err
	}
	dAfter := sub(d, shares)
	aAfter := sub(a, shares)

	t1, err := mul(a, dAfter)
	if err != nil {
		return SellQuote{}, err
	}
	t2, err := mul(aAfter, d)
	if err != nil {
		return SellQuote{}, err
	}
	num, err := add(t1, t2)
	if err != nil {
		return SellQuote{}, err
	}
	dd, err := mul(d, dAfter)
	if err != nil {
		return SellQuote{}, err
	}
	den, err := mul(dd, two)
	if err != nil {
		return SellQuote{}, err
	}
	gross, err := mulDiv(shares, num, den)
	if err != nil {
		return SellQuote{}, err
	}

	if gross.Gt(&p.TradeCollateral) {
		return SellQuote{}, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext("trade collateral cannot cover payout"))
	}

	fee, err := FeeOf(gross, p.FeeBps)
	if err != nil {
		return SellQuote{}, err
	}

	return SellQuote{
		Side:   side,
		Shares: new(uint256.Int).Set(shares),
		Gross:  gross,
		Fee:    fee,
		Payout: sub(gross, fee),
	}, nil
}

// ApplySell commits a quote produced by QuoteSell on the same state.
func (p *Pool) ApplySell(q SellQuote) error {
	if q.Shares.Gt(p.supply(q.Side)) || q.Shares.Gt(p.reserve(q.Side)) || q.Gross.Gt(&p.TradeCollateral) {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("stale sell quote"))
	}
	fee, err := add(&p.TotalFee, q.Fee)
	if err != nil {
		return err
	}

	p.TradeCollateral.Sub(&p.TradeCollateral, q.Gross)
	p.TotalFee.Set(fee)
	p.reserve(q.Side).Sub(p.reserve(q.Side), q.Shares)
	p.supply(q.Side).Sub(p.supply(q.Side), q.Shares)
	return nil
}
