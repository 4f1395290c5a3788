package domain

import (
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

// Pool is the per-market ledger. It is a plain value: copying it takes a
// complete snapshot, which the engine uses to revert failed calls.
type Pool struct {
	MarketID         uint64
	FeeBps           uint64
	VirtualLiquidity uint256.Int // fixed at creation

	LPCollateral    uint256.Int // LP principal net of withdrawals
	TradeCollateral uint256.Int // collateral backing outstanding shares
	TotalFee        uint256.Int // undistributed fees
	TotalLP         uint256.Int

	YesAmount uint256.Int // reserves driving price
	NoAmount  uint256.Int

	YesSupply uint256.Int // outcome shares held by users
	NoSupply  uint256.Int

	Outcome        market.Outcome
	RedemptionRate uint256.Int // collateral paid per redeemed share, set at settlement

	// Custody of the collateral above: Idle stays in escrow, the rest is
	// parked in the yield vault as VaultShares.
	Idle        uint256.Int
	VaultShares uint256.Int
}

// NewPool creates an empty pool.
func NewPool(marketID uint64, virtualLiquidity *uint256.Int, feeBps uint64) (Pool, error) {
	if virtualLiquidity == nil || virtualLiquidity.IsZero() {
		return Pool{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("virtual liquidity must be positive"))
	}
	if feeBps > market.MaxFeeBps {
		return Pool{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("fee exceeds 10000 bps"))
	}

	p := Pool{MarketID: marketID, FeeBps: feeBps}
	p.VirtualLiquidity.Set(virtualLiquidity)
	return p, nil
}

// Settled reports whether the pool has been settled against an outcome.
func (p *Pool) Settled() bool {
	return p.Outcome != market.Unresolved
}

// Value is lpCollateral + tradeCollateral + totalFee, the NAV used for LP minting.
func (p *Pool) Value() (*uint256.Int, error) {
	return sum(&p.LPCollateral, &p.TradeCollateral, &p.TotalFee)
}

// reserve returns the reserve moved by trading side.
// Buying YES grows noAmount, which raises the YES price.
func (p *Pool) reserve(side market.Outcome) *uint256.Int {
	if side == market.Yes {
		return &p.NoAmount
	}
	return &p.YesAmount
}

func (p *Pool) supply(side market.Outcome) *uint256.Int {
	if side == market.Yes {
		return &p.YesSupply
	}
	return &p.NoSupply
}

// sideTerms returns A (the numerator of side's price) and D (the common denominator).
func (p *Pool) sideTerms(side market.Outcome) (a, d *uint256.Int, err error) {
	a, err = add(&p.VirtualLiquidity, p.reserve(side))
	if err != nil {
		return nil, nil, err
	}
	d, err = sum(&p.VirtualLiquidity, &p.VirtualLiquidity, &p.YesAmount, &p.NoAmount)
	if err != nil {
		return nil, nil, err
	}
	if d.IsZero() {
		return nil, nil, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("empty pricing denominator"))
	}
	return a, d, nil
}

// Position is one account's holdings in one market.
type Position struct {
	LP         uint256.Int
	YesBalance uint256.Int
	NoBalance  uint256.Int
}

// Balance returns the share balance of side.
func (pos *Position) Balance(side market.Outcome) *uint256.Int {
	if side == market.Yes {
		return &pos.YesBalance
	}
	return &pos.NoBalance
}

// IsZero reports whether the position holds nothing.
func (pos *Position) IsZero() bool {
	return pos.LP.IsZero() && pos.YesBalance.IsZero() && pos.NoBalance.IsZero()
}
