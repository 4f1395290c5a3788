// Package vault is an in-process share-accounting yield vault for idle
// pool collateral.
package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/logger"
)

// DefaultAddress is the ledger account holding vault assets.
var DefaultAddress = common.HexToAddress("0x0000000000000000000000000000000000007a17")

var (
	bpsDen = uint256.NewInt(10_000)
	dayNs  = uint256.NewInt(uint64(24 * time.Hour))
)

// Ledger moves vault assets and mints yield.
type Ledger interface {
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
	Mint(ctx context.Context, token, to common.Address, amount *uint256.Int) error
}

// Options configures a Vault.
type Options struct {
	Owner          common.Address // the only depositor, the engine escrow
	Address        common.Address // zero selects DefaultAddress
	YieldBpsPerDay uint64
	Clock          clock.Clock
	Logger         logger.LoggerInterface
}

// book is the per-token state of the vault.
type book struct {
	assets    uint256.Int
	shares    uint256.Int
	accruedAt time.Time
	liquid    *uint256.Int // nil means every asset can be withdrawn
}

// Vault issues shares against deposited collateral and grows its assets by
// a fixed daily yield.
type Vault struct {
	ledger  Ledger
	owner   common.Address
	address common.Address
	yield   *uint256.Int
	clock   clock.Clock
	log     logger.LoggerInterface

	mu    sync.Mutex
	books map[common.Address]*book
}

// New creates a vault on top of ledger.
func New(ledger Ledger, opts Options) *Vault {
	if opts.Address == (common.Address{}) {
		opts.Address = DefaultAddress
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	return &Vault{
		ledger:  ledger,
		owner:   opts.Owner,
		address: opts.Address,
		yield:   uint256.NewInt(opts.YieldBpsPerDay),
		clock:   opts.Clock,
		log:     opts.Logger.With("component", "vault"),
		books:   make(map[common.Address]*book),
	}
}

// Address returns the ledger account of the vault.
func (v *Vault) Address() common.Address {
	return v.address
}

func (v *Vault) book(token common.Address) *book {
	b, ok := v.books[token]
	if !ok {
		b = &book{accruedAt: v.clock.Now()}
		v.books[token] = b
	}
	return b
}

// Deposit pulls amount from the owner and mints shares at the current rate,
// rounded up. Every share belongs to the owner, so the rounding only moves
// dust between the pools it books them to, and the shares minted for amount
// always cover a later withdrawal of amount.
func (v *Vault) Deposit(ctx context.Context, token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("deposit must be positive"))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	b := v.book(token)
	if err := v.accrue(ctx, token, b); err != nil {
		return nil, err
	}

	shares := new(uint256.Int).Set(amount)
	if !b.shares.IsZero() {
		var err error
		if shares, err = sharesFor(amount, &b.shares, &b.assets); err != nil {
			return nil, err
		}
	}

	if err := v.ledger.Transfer(ctx, token, v.owner, v.address, amount); err != nil {
		return nil, err
	}

	b.assets.Add(&b.assets, amount)
	b.shares.Add(&b.shares, shares)
	if b.liquid != nil {
		b.liquid.Add(b.liquid, amount)
	}
	return shares, nil
}

// Withdraw returns exactly amount to the owner, burning the shares it is
// worth rounded up, or all of maxShares when they are worth amount rounded
// up. It fails without side effects when the vault cannot release amount or
// maxShares are worth less.
func (v *Vault) Withdraw(ctx context.Context, token common.Address, amount, maxShares *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return new(uint256.Int), nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	b := v.book(token)
	if err := v.accrue(ctx, token, b); err != nil {
		return nil, err
	}

	available := &b.assets
	if b.liquid != nil && b.liquid.Lt(available) {
		available = b.liquid
	}
	if available.Lt(amount) {
		return nil, apperror.New(apperror.CodeVaultWithdrawalShortfall,
			apperror.WithContext(fmt.Sprintf("requested %s, vault can release %s", amount.Dec(), available.Dec())))
	}

	shares, err := sharesFor(amount, &b.shares, &b.assets)
	if err != nil {
		return nil, err
	}
	if maxShares != nil && maxShares.Lt(shares) {
		covers, err := worthUpTo(maxShares, amount, &b.shares, &b.assets)
		if err != nil {
			return nil, err
		}
		if !covers {
			return nil, apperror.New(apperror.CodeVaultWithdrawalShortfall,
				apperror.WithContext(fmt.Sprintf("withdrawal needs %s shares, holder has %s", shares.Dec(), maxShares.Dec())))
		}
		// the holder is short by less than one wei of rounding
		shares = new(uint256.Int).Set(maxShares)
	}

	if err := v.ledger.Transfer(ctx, token, v.address, v.owner, amount); err != nil {
		return nil, err
	}

	b.assets.Sub(&b.assets, amount)
	b.shares.Sub(&b.shares, shares)
	if b.liquid != nil {
		b.liquid.Sub(b.liquid, amount)
	}
	return shares, nil
}

// ConvertToAssets values shares at the current rate, rounded down.
func (v *Vault) ConvertToAssets(ctx context.Context, token common.Address, shares *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b := v.book(token)
	if err := v.accrue(ctx, token, b); err != nil {
		return nil, err
	}
	if shares == nil || b.shares.IsZero() {
		return new(uint256.Int), nil
	}

	assets, overflow := new(uint256.Int).MulDivOverflow(shares, &b.assets, &b.shares)
	if overflow {
		return nil, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("vault assets"))
	}
	return assets, nil
}

// Totals returns the assets and shares outstanding for token.
func (v *Vault) Totals(token common.Address) (assets, shares *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b := v.book(token)
	return new(uint256.Int).Set(&b.assets), new(uint256.Int).Set(&b.shares)
}

// SetLiquid caps how much of token the vault can release. Deposits raise
// the cap and withdrawals lower it. Nil removes the cap.
func (v *Vault) SetLiquid(token common.Address, liquid *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b := v.book(token)
	if liquid == nil {
		b.liquid = nil
		return
	}
	b.liquid = new(uint256.Int).Set(liquid)
}

// Accrue credits the yield earned since the last accrual on every token.
func (v *Vault) Accrue(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for token, b := range v.books {
		if err := v.accrue(ctx, token, b); err != nil {
			return err
		}
	}
	return nil
}

// Run accrues yield every interval until ctx is done.
func (v *Vault) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.Accrue(ctx); err != nil {
				v.log.Warn(ctx, "yield accrual failed", "error", err)
			}
		}
	}
}

// accrue mints assets·bps·elapsed/(10000·1d) into the vault. Elapsed time
// that earns less than one wei is carried to the next accrual.
func (v *Vault) accrue(ctx context.Context, token common.Address, b *book) error {
	now := v.clock.Now()
	elapsed := now.Sub(b.accruedAt)
	if elapsed <= 0 {
		return nil
	}
	if v.yield.IsZero() || b.assets.IsZero() {
		b.accruedAt = now
		return nil
	}

	rate := new(uint256.Int).Mul(v.yield, uint256.NewInt(uint64(elapsed)))
	den := new(uint256.Int).Mul(bpsDen, dayNs)
	earned, overflow := new(uint256.Int).MulDivOverflow(&b.assets, rate, den)
	if overflow {
		return apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("vault yield"))
	}
	if earned.IsZero() {
		return nil
	}

	if err := v.ledger.Mint(ctx, token, v.address, earned); err != nil {
		return err
	}
	b.assets.Add(&b.assets, earned)
	b.accruedAt = now
	v.log.Debug(ctx, "yield accrued", "token", token.Hex(), "earned", earned.Dec(), "assets", b.assets.Dec())
	return nil
}

// sharesFor returns ceil(amount·shares/assets).
func sharesFor(amount, shares, assets *uint256.Int) (*uint256.Int, error) {
	if assets.IsZero() {
		return new(uint256.Int).Set(amount), nil
	}
	q, overflow := new(uint256.Int).MulDivOverflow(amount, shares, assets)
	if overflow {
		return nil, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("vault shares"))
	}
	prod, overflow := new(uint256.Int).MulOverflow(amount, shares)
	if overflow {
		return nil, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("vault shares"))
	}
	if !new(uint256.Int).Mul(q, assets).Eq(prod) {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// worthUpTo reports whether ceil(held·assets/shares) >= amount.
func worthUpTo(held, amount, shares, assets *uint256.Int) (bool, error) {
	if shares.IsZero() {
		return false, nil
	}
	value, overflow := new(uint256.Int).MulOverflow(held, assets)
	if overflow {
		return false, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("vault assets"))
	}
	below := new(uint256.Int).SubUint64(amount, 1)
	floor, overflow := new(uint256.Int).MulOverflow(below, shares)
	if overflow {
		return false, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("vault assets"))
	}
	return value.Gt(floor), nil
}
