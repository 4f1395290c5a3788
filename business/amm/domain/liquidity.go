package domain

import (
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

// AddQuote is the result of adding liquidity against the current state.
type AddQuote struct {
	Amount   *uint256.Int
	LPMinted *uint256.Int
	YesDelta *uint256.Int
	NoDelta  *uint256.Int
}

// RemovalQuote is the result of burning LP shares against the current state.
// QuoteRemove is the single source of this arithmetic: the read-only
// estimate and the real removal both use it.
type RemovalQuote struct {
	LP             *uint256.Int
	FeeShare       *uint256.Int
	PrincipalShare *uint256.Int
	TotalValue     *uint256.Int
	YesDelta       *uint256.Int
	NoDelta        *uint256.Int
}

// splitAtPrice divides amount between the reserves in the ratio of the
// current prices, so applying it in either direction keeps the spot price.
// On a fresh pool this is an even split.
func (p *Pool) splitAtPrice(amount *uint256.Int) (yesDelta, noDelta *uint256.Int, err error) {
	a, d, err := p.sideTerms(market.Yes)
	if err != nil {
		return nil, nil, err
	}
	noDelta, err = mulDiv(amount, a, d)
	if err != nil {
		return nil, nil, err
	}
	return sub(amount, noDelta), noDelta, nil
}

// QuoteAdd prices adding amount of collateral.
// The first provider mints 1:1; later providers mint against pool NAV.
func (p *Pool) QuoteAdd(amount *uint256.Int) (AddQuote, error) {
	if amount == nil || amount.IsZero() {
		return AddQuote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("amount must be positive"))
	}

	var lp *uint256.Int
	if p.TotalLP.IsZero() {
		lp = new(uint256.Int).Set(amount)
	} else {
		value, err := p.Value()
		if err != nil {
			return AddQuote{}, err
		}
		if value.IsZero() {
			return AddQuote{}, apperror.New(apperror.CodeInvalidState,
				apperror.WithContext("LP supply without pool value"))
		}
		if lp, err = mulDiv(&p.TotalLP, amount, value); err != nil {
			return AddQuote{}, err
		}
	}
	if lp.IsZero() {
		return AddQuote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("deposit too small to mint LP"))
	}

	yesDelta, noDelta, err := p.splitAtPrice(amount)
	if err != nil {
		return AddQuote{}, err
	}

	return AddQuote{
		Amount:   new(uint256.Int).Set(amount),
		LPMinted: lp,
		YesDelta: yesDelta,
		NoDelta:  noDelta,
	}, nil
}

// ApplyAdd commits a quote produced by QuoteAdd on the same state.
func (p *Pool) ApplyAdd(q AddQuote) error {
	lpColl, err := add(&p.LPCollateral, q.Amount)
	if err != nil {
		return err
	}
	totalLP, err := add(&p.TotalLP, q.LPMinted)
	if err != nil {
		return err
	}
	yes, err := add(&p.YesAmount, q.YesDelta)
	if err != nil {
		return err
	}
	no, err := add(&p.NoAmount, q.NoDelta)
	if err != nil {
		return err
	}

	p.LPCollateral.Set(lpColl)
	p.TotalLP.Set(totalLP)
	p.YesAmount.Set(yes)
	p.NoAmount.Set(no)
	return nil
}

// QuoteRemove prices burning lp shares:
//
//	feeShare  = totalFee * lp / totalLp
//	principal = lpCollateral * lp / totalLp
//
// The reserves shrink with the principal at the current price, but never
// into the shares held by traders.
func (p *Pool) QuoteRemove(lp *uint256.Int) (RemovalQuote, error) {
	if lp == nil || lp.IsZero() {
		return RemovalQuote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("lp amount must be positive"))
	}
	if lp.Gt(&p.TotalLP) {
		return RemovalQuote{}, apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext("lp amount exceeds supply"))
	}

	feeShare, err := mulDiv(&p.TotalFee, lp, &p.TotalLP)
	if err != nil {
		return RemovalQuote{}, err
	}
	principal, err := mulDiv(&p.LPCollateral, lp, &p.TotalLP)
	if err != nil {
		return RemovalQuote{}, err
	}
	total, err := add(feeShare, principal)
	if err != nil {
		return RemovalQuote{}, err
	}

	out, err := p.reserveOut(principal)
	if err != nil {
		return RemovalQuote{}, err
	}
	yesDelta, noDelta, err := p.splitAtPrice(out)
	if err != nil {
		return RemovalQuote{}, err
	}

	return RemovalQuote{
		LP:             new(uint256.Int).Set(lp),
		FeeShare:       feeShare,
		PrincipalShare: principal,
		TotalValue:     total,
		YesDelta:       minInt(yesDelta, floorSub(&p.YesAmount, &p.NoSupply)),
		NoDelta:        minInt(noDelta, floorSub(&p.NoAmount, &p.YesSupply)),
	}, nil
}

// reserveOut returns how much of a principal withdrawal leaves the
// reserves. Buying YES mints into noAmount, so noAmount never drops below
// yesSupply (and yesAmount below noSupply): those shares stay sellable
// after every LP has left. The cut is capped at the LP-owned part of each
// reserve, taken at the current price.
func (p *Pool) reserveOut(principal *uint256.Int) (*uint256.Int, error) {
	a, d, err := p.sideTerms(market.Yes)
	if err != nil {
		return nil, err
	}
	b := sub(d, a)

	// the NO side gives up out·a/d and the YES side out·b/d
	noLimit, err := mulDiv(floorSub(&p.NoAmount, &p.YesSupply), d, a)
	if err != nil {
		return nil, err
	}
	yesLimit, err := mulDiv(floorSub(&p.YesAmount, &p.NoSupply), d, b)
	if err != nil {
		return nil, err
	}
	return minInt(principal, minInt(noLimit, yesLimit)), nil
}

// floorSub returns x-y, or zero when y > x.
func floorSub(x, y *uint256.Int) *uint256.Int {
	if y.Gt(x) {
		return new(uint256.Int)
	}
	return sub(x, y)
}

// ApplyRemove commits a quote produced by QuoteRemove on the same state.
func (p *Pool) ApplyRemove(q RemovalQuote) error {
	if q.LP.Gt(&p.TotalLP) || q.FeeShare.Gt(&p.TotalFee) || q.PrincipalShare.Gt(&p.LPCollateral) ||
		q.YesDelta.Gt(&p.YesAmount) || q.NoDelta.Gt(&p.NoAmount) {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("stale removal quote"))
	}

	p.TotalLP.Sub(&p.TotalLP, q.LP)
	p.TotalFee.Sub(&p.TotalFee, q.FeeShare)
	p.LPCollateral.Sub(&p.LPCollateral, q.PrincipalShare)
	p.YesAmount.Sub(&p.YesAmount, q.YesDelta)
	p.NoAmount.Sub(&p.NoAmount, q.NoDelta)
	return nil
}
