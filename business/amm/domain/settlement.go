package domain

import (
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

// Settlement describes how a resolved pool was squared up.
type Settlement struct {
	Outcome   market.Outcome
	Liability *uint256.Int // collateral owed to winning shares at full value
	Surplus   *uint256.Int // trade collateral released to LPs
	Deficit   *uint256.Int // LP collateral moved to cover winners
	Rate      *uint256.Int // collateral per redeemed share
}

// Settle fixes the redemption rate for outcome and moves value between
// trade and LP collateral so that tradeCollateral backs every redemption.
// Winning shares redeem at One; on Invalid every share redeems at one half.
// If the pool cannot cover the liability, the rate is cut pro rata.
func (p *Pool) Settle(outcome market.Outcome) (Settlement, error) {
	if !outcome.IsTerminal() {
		return Settlement{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("outcome must be yes, no or invalid"))
	}
	if p.Settled() {
		return Settlement{}, apperror.New(apperror.CodeAlreadyResolved)
	}

	var liability, base *uint256.Int
	switch outcome {
	case market.Yes:
		liability, base = new(uint256.Int).Set(&p.YesSupply), One
	case market.No:
		liability, base = new(uint256.Int).Set(&p.NoSupply), One
	default:
		// rounded up so floored per-account payouts never exceed it
		all, err := sum(&p.YesSupply, &p.NoSupply, uint256.NewInt(1))
		if err != nil {
			return Settlement{}, err
		}
		liability, base = all.Rsh(all, 1), half
	}

	s := Settlement{
		Outcome:   outcome,
		Liability: liability,
		Surplus:   new(uint256.Int),
		Deficit:   new(uint256.Int),
		Rate:      new(uint256.Int).Set(base),
	}

	if !p.TradeCollateral.Lt(liability) {
		s.Surplus = sub(&p.TradeCollateral, liability)
		lpColl, err := add(&p.LPCollateral, s.Surplus)
		if err != nil {
			return Settlement{}, err
		}
		p.LPCollateral.Set(lpColl)
		p.TradeCollateral.Set(liability)
	} else {
		s.Deficit = minInt(sub(liability, &p.TradeCollateral), &p.LPCollateral)
		p.LPCollateral.Sub(&p.LPCollateral, s.Deficit)
		p.TradeCollateral.Add(&p.TradeCollateral, s.Deficit)

		if p.TradeCollateral.Lt(liability) {
			rate, err := mulDiv(base, &p.TradeCollateral, liability)
			if err != nil {
				return Settlement{}, err
			}
			s.Rate = rate
		}
	}

	p.Outcome = outcome
	p.RedemptionRate.Set(s.Rate)
	return s, nil
}

// RedeemQuote is what an account receives for its shares after settlement.
type RedeemQuote struct {
	YesBurned *uint256.Int
	NoBurned  *uint256.Int
	Payout    *uint256.Int
}

// QuoteRedeem prices redeeming every outcome share in pos.
func (p *Pool) QuoteRedeem(pos *Position) (RedeemQuote, error) {
	if !p.Settled() {
		return RedeemQuote{}, apperror.New(apperror.CodeMarketNotExpired,
			apperror.WithContext("market not resolved"))
	}
	if pos.YesBalance.IsZero() && pos.NoBalance.IsZero() {
		return RedeemQuote{}, apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext("no outcome shares to redeem"))
	}

	var winning *uint256.Int
	switch p.Outcome {
	case market.Yes:
		winning = &pos.YesBalance
	case market.No:
		winning = &pos.NoBalance
	default:
		all, err := add(&pos.YesBalance, &pos.NoBalance)
		if err != nil {
			return RedeemQuote{}, err
		}
		winning = all
	}

	payout, err := mulDiv(winning, &p.RedemptionRate, One)
	if err != nil {
		return RedeemQuote{}, err
	}
	if payout.Gt(&p.TradeCollateral) {
		return RedeemQuote{}, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext("redemption exceeds trade collateral"))
	}

	return RedeemQuote{
		YesBurned: new(uint256.Int).Set(&pos.YesBalance),
		NoBurned:  new(uint256.Int).Set(&pos.NoBalance),
		Payout:    payout,
	}, nil
}

// ApplyRedeem burns the shares and releases the payout from trade collateral.
func (p *Pool) ApplyRedeem(pos *Position, q RedeemQuote) error {
	if q.YesBurned.Gt(&p.YesSupply) || q.NoBurned.Gt(&p.NoSupply) || q.Payout.Gt(&p.TradeCollateral) {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("stale redeem quote"))
	}
	p.YesSupply.Sub(&p.YesSupply, q.YesBurned)
	p.NoSupply.Sub(&p.NoSupply, q.NoBurned)
	p.TradeCollateral.Sub(&p.TradeCollateral, q.Payout)
	pos.YesBalance.Clear()
	pos.NoBalance.Clear()
	return nil
}
