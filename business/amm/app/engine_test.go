package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/business/amm/infra/memory"
	"github.com/fd1az/prediction-amm/business/amm/infra/vault"
	marketapp "github.com/fd1az/prediction-amm/business/market/app"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/clock"
)

var (
	admin   = common.HexToAddress("0xad")
	alice   = common.HexToAddress("0xa1")
	bob     = common.HexToAddress("0xb0")
	carol   = common.HexToAddress("0xc0")
	usdc    = asset.AddrUSDC
	genesis = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	week    = 7 * 24 * time.Hour
)

func units(s string) *uint256.Int {
	return asset.MustParseUnits(s)
}

// flakyLedger fails transfers out of the escrow while fail is set.
type flakyLedger struct {
	*memory.Ledger
	mu   sync.Mutex
	fail bool
}

func (f *flakyLedger) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyLedger) Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail && from == app.DefaultEscrow {
		return errors.New("token transfer reverted")
	}
	return f.Ledger.Transfer(ctx, token, from, to, amount)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	yes    map[uint64]*uint256.Int
	err    error
}

func (r *recordingSink) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) SetPrices(_ context.Context, id uint64, yes, _ *uint256.Int, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.yes == nil {
		r.yes = make(map[uint64]*uint256.Int)
	}
	r.yes[id] = new(uint256.Int).Set(yes)
	return r.err
}

type harness struct {
	engine   *app.Engine
	registry *marketapp.Registry
	ledger   *flakyLedger
	vault    *vault.Vault
	journal  *memory.Journal
	sink     *recordingSink
	clock    *clock.Fake
}

type harnessOpts struct {
	yieldBps uint64
	noVault  bool
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewFake(genesis)

	registry, err := marketapp.NewRegistry(marketapp.Options{FeeBps: 60, Admin: admin}, asset.DefaultRegistry(), clk, nil, nil)
	require.NoError(t, err)
	_, err = registry.SetTokenInfo(ctx, admin, usdc, true, units("10"))
	require.NoError(t, err)

	h := &harness{
		registry: registry,
		ledger:   &flakyLedger{Ledger: memory.NewLedger()},
		journal:  memory.NewJournal(0),
		sink:     &recordingSink{},
		clock:    clk,
	}

	deps := app.Deps{
		Markets:   registry,
		Ledger:    h.ledger,
		Journal:   h.journal,
		Publisher: h.sink,
		Prices:    h.sink,
		Clock:     clk,
	}
	if !opts.noVault {
		h.vault = vault.New(h.ledger.Ledger, vault.Options{Owner: app.DefaultEscrow, YieldBpsPerDay: opts.yieldBps, Clock: clk})
		deps.Vault = h.vault
	}

	h.engine, err = app.NewEngine(deps, common.Address{})
	require.NoError(t, err)
	registry.Subscribe(h.engine)

	for _, acct := range []common.Address{alice, bob, carol} {
		require.NoError(t, h.ledger.Mint(ctx, usdc, acct, units("10000")))
	}
	return h
}

func (h *harness) createMarket(t *testing.T, id uint64) {
	t.Helper()
	_, err := h.registry.CreateMarket(context.Background(), alice, market.CreateParams{
		MarketID:         id,
		Period:           week,
		VirtualLiquidity: units("1000"),
		Quest:            fmt.Sprintf("market %d", id),
		Collateral:       usdc,
	})
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, holder common.Address) *uint256.Int {
	t.Helper()
	b, err := h.ledger.BalanceOf(context.Background(), usdc, holder)
	require.NoError(t, err)
	return b
}

// custody is what the engine holds for its pools, idle or parked.
func (h *harness) custody(t *testing.T) *uint256.Int {
	t.Helper()
	total := h.balance(t, app.DefaultEscrow)
	if h.vault != nil {
		total.Add(total, h.balance(t, h.vault.Address()))
	}
	return total
}

func (h *harness) pool(t *testing.T, id uint64) domain.Pool {
	t.Helper()
	p, err := h.engine.Pool(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) buy(t *testing.T, who common.Address, id uint64, side market.Outcome, amount string) domain.BuyQuote {
	t.Helper()
	q, err := h.engine.Buy(context.Background(), who, app.BuyParams{MarketID: id, Outcome: side, AmountIn: units(amount)})
	require.NoError(t, err)
	return q
}

func (h *harness) add(t *testing.T, who common.Address, id uint64, amount string) domain.AddQuote {
	t.Helper()
	q, err := h.engine.AddLiquidity(context.Background(), who, app.AddLiquidityParams{MarketID: id, Amount: units(amount)})
	require.NoError(t, err)
	return q
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	_, err := app.NewEngine(app.Deps{}, common.Address{})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfig))
}

func TestCreateMarket_InitialisesPool(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)

	p := h.pool(t, 1)
	assert.Equal(t, "1000000000000000000000", p.VirtualLiquidity.Dec())
	assert.Equal(t, uint64(60), p.FeeBps)
	assert.True(t, p.TotalLP.IsZero())

	yes, no, err := h.engine.Prices(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", yes.Dec())
	assert.Equal(t, "500000000000000000", no.Dec())

	err = h.engine.OnMarketCreated(context.Background(), market.Market{ID: 1, VirtualLiquidity: *units("1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestBuy_ReferenceExample(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	quoted, err := h.engine.QuoteBuy(ctx, 1, market.Yes, units("100"))
	require.NoError(t, err)

	q := h.buy(t, alice, 1, market.Yes, "100")
	assert.Equal(t, "600000000000000000", q.Fee.Dec())
	assert.Equal(t, "190515182978975734030", q.Shares.Dec())
	assert.Equal(t, quoted, q)

	yes, no, err := h.engine.Prices(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "543486387234231800", yes.Dec())
	assert.Equal(t, domain.One.Dec(), new(uint256.Int).Add(yes, no).Dec())

	pos, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, q.Shares.Dec(), pos.YesBalance.Dec())

	assert.Equal(t, units("9900").Dec(), h.balance(t, alice).Dec())
	assert.Equal(t, units("100").Dec(), h.balance(t, h.vault.Address()).Dec(), "deposit is parked in the vault")
	p := h.pool(t, 1)
	assert.Equal(t, units("100").Dec(), p.VaultShares.Dec())
	assert.True(t, p.Idle.IsZero())

	held, err := h.engine.VaultBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, units("100").Dec(), held.Dec())

	events, err := h.engine.Events(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPoolCreated, events[0].Kind)
	assert.Equal(t, domain.EventBuy, events[1].Kind)
	assert.Equal(t, q.Shares.Dec(), events[1].Shares.Dec())
	assert.Equal(t, yes.Dec(), events[1].PriceYes.Dec())
	assert.Equal(t, yes.Dec(), h.sink.yes[1].Dec())
}

func TestBuy_Rejections(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()
	broke := common.HexToAddress("0xdead")

	tests := []struct {
		name    string
		account common.Address
		params  app.BuyParams
		code    apperror.Code
	}{
		{"zero amount", alice, app.BuyParams{MarketID: 1, Outcome: market.Yes, AmountIn: new(uint256.Int)}, apperror.CodeInvalidInput},
		{"below minimum", alice, app.BuyParams{MarketID: 1, Outcome: market.Yes, AmountIn: units("9.99")}, apperror.CodeInvalidInput},
		{"invalid side", alice, app.BuyParams{MarketID: 1, Outcome: market.Invalid, AmountIn: units("100")}, apperror.CodeInvalidInput},
		{"unknown market", alice, app.BuyParams{MarketID: 9, Outcome: market.Yes, AmountIn: units("100")}, apperror.CodeMarketNotFound},
		{"slippage", alice, app.BuyParams{MarketID: 1, Outcome: market.Yes, AmountIn: units("100"), MinSharesOut: units("190.515182978975734031")}, apperror.CodeSlippageExceeded},
		{"unfunded", broke, app.BuyParams{MarketID: 1, Outcome: market.No, AmountIn: units("100")}, apperror.CodeInsufficientBalance},
	}

	before := h.pool(t, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Buy(ctx, tt.account, tt.params)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}

	assert.Equal(t, before, h.pool(t, 1), "rejected calls must not touch the pool")
	positions, err := h.engine.Positions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, positions, "rejected calls must not leave positions behind")
	assert.Equal(t, units("10000").Dec(), h.balance(t, alice).Dec())
}

func TestBuy_TokenDisabled(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	_, err := h.registry.SetTokenInfo(ctx, admin, usdc, false, units("10"))
	require.NoError(t, err)

	_, err = h.engine.Buy(ctx, alice, app.BuyParams{MarketID: 1, Outcome: market.Yes, AmountIn: units("100")})
	assert.True(t, apperror.HasCode(err, apperror.CodeTokenNotEnabled), "got %v", err)
	_, err = h.engine.AddLiquidity(ctx, alice, app.AddLiquidityParams{MarketID: 1, Amount: units("100")})
	assert.True(t, apperror.HasCode(err, apperror.CodeTokenNotEnabled), "got %v", err)
}

func TestTradingClosesAtExpiry(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()
	q := h.buy(t, alice, 1, market.Yes, "100")
	h.add(t, bob, 1, "500")

	h.clock.Advance(week)

	_, err := h.engine.Buy(ctx, alice, app.BuyParams{MarketID: 1, Outcome: market.Yes, AmountIn: units("100")})
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketExpired), "buy: %v", err)
	_, err = h.engine.Sell(ctx, alice, app.SellParams{MarketID: 1, Outcome: market.Yes, Shares: q.Shares})
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketExpired), "sell: %v", err)
	_, err = h.engine.AddLiquidity(ctx, alice, app.AddLiquidityParams{MarketID: 1, Amount: units("100")})
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketExpired), "add: %v", err)
	_, err = h.engine.QuoteBuy(ctx, 1, market.Yes, units("100"))
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketExpired), "quote: %v", err)

	pos, err := h.engine.Position(ctx, bob, 1)
	require.NoError(t, err)
	_, err = h.engine.RemoveLiquidity(ctx, bob, 1, &pos.LP)
	assert.NoError(t, err, "liquidity removal stays open after expiry")
}

func TestSell_RoundTrip(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	bought := h.buy(t, alice, 1, market.No, "250")

	_, err := h.engine.Sell(ctx, alice, app.SellParams{
		MarketID: 1, Outcome: market.No, Shares: new(uint256.Int).AddUint64(bought.Shares, 1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance), "got %v", err)

	_, err = h.engine.Sell(ctx, bob, app.SellParams{MarketID: 1, Outcome: market.No, Shares: units("1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance), "got %v", err)

	quoted, err := h.engine.QuoteSell(ctx, 1, market.No, bought.Shares)
	require.NoError(t, err)

	_, err = h.engine.Sell(ctx, alice, app.SellParams{
		MarketID: 1, Outcome: market.No, Shares: bought.Shares,
		MinCollateralOut: new(uint256.Int).AddUint64(quoted.Payout, 1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeSlippageExceeded), "got %v", err)

	sold, err := h.engine.Sell(ctx, alice, app.SellParams{
		MarketID: 1, Outcome: market.No, Shares: bought.Shares, MinCollateralOut: quoted.Payout,
	})
	require.NoError(t, err)
	assert.Equal(t, quoted, sold)
	assert.True(t, sold.Payout.Lt(units("250")), "round trip pays fees")

	want := new(uint256.Int).Sub(units("10000"), units("250"))
	want.Add(want, sold.Payout)
	assert.Equal(t, want.Dec(), h.balance(t, alice).Dec())

	p := h.pool(t, 1)
	assert.True(t, p.NoSupply.IsZero())
	assert.True(t, p.YesAmount.IsZero(), "selling NO unwinds the YES reserve")

	value, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, value.Dec(), h.custody(t).Dec(), "custody backs the pool ledger")
}

func TestLiquidity_LPAccounting(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	h.buy(t, carol, 1, market.Yes, "100")
	h.add(t, bob, 1, "500")
	h.buy(t, carol, 1, market.No, "40")

	_, err := h.engine.AddLiquidity(ctx, bob, app.AddLiquidityParams{MarketID: 1, Amount: units("100"), MinLPOut: units("1000")})
	assert.True(t, apperror.HasCode(err, apperror.CodeSlippageExceeded), "got %v", err)

	positions, err := h.engine.Positions(ctx, 1)
	require.NoError(t, err)
	total := new(uint256.Int)
	for _, pos := range positions {
		total.Add(total, &pos.LP)
	}
	p := h.pool(t, 1)
	assert.Equal(t, p.TotalLP.Dec(), total.Dec(), "totalLp equals the sum of LP positions")

	alicePos := positions[alice]
	half := new(uint256.Int).Rsh(&alicePos.LP, 1)

	estimate, err := h.engine.EstimateLiquidityRemoval(ctx, 1, half)
	require.NoError(t, err)
	assert.Equal(t, p, h.pool(t, 1), "estimate is read-only")

	before := h.balance(t, alice)
	removed, err := h.engine.RemoveLiquidity(ctx, alice, 1, half)
	require.NoError(t, err)
	assert.Equal(t, estimate, removed)
	assert.Equal(t, new(uint256.Int).Add(before, removed.TotalValue).Dec(), h.balance(t, alice).Dec())

	_, err = h.engine.RemoveLiquidity(ctx, carol, 1, units("1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance), "got %v", err)
	positions, err = h.engine.Positions(ctx, 1)
	require.NoError(t, err)
	carolPos, bobPos := positions[carol], positions[bob]
	assert.True(t, carolPos.LP.IsZero())

	tooMuch := new(uint256.Int).AddUint64(&bobPos.LP, 1)
	_, err = h.engine.RemoveLiquidity(ctx, bob, 1, tooMuch)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance), "got %v", err)
}

func TestSell_AfterLastLPLeaves(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	bought := h.buy(t, bob, 1, market.Yes, "1000")

	pos, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	priceBefore, _, err := h.engine.Prices(ctx, 1)
	require.NoError(t, err)
	removed, err := h.engine.RemoveLiquidity(ctx, alice, 1, &pos.LP)
	require.NoError(t, err)
	assert.Equal(t, units("1006").Dec(), removed.TotalValue.Dec(), "principal plus every fee")

	p := h.pool(t, 1)
	assert.True(t, p.TotalLP.IsZero())
	assert.False(t, p.NoAmount.Lt(&p.YesSupply), "reserve %s below yes supply %s", p.NoAmount.Dec(), p.YesSupply.Dec())
	priceAfter, _, err := h.engine.Prices(ctx, 1)
	require.NoError(t, err)
	drift := new(uint256.Int).Sub(priceBefore, priceAfter)
	if priceAfter.Gt(priceBefore) {
		drift.Sub(priceAfter, priceBefore)
	}
	assert.False(t, drift.GtUint64(1), "removal moved the price by %s wei", drift.Dec())

	sold, err := h.engine.Sell(ctx, bob, app.SellParams{MarketID: 1, Outcome: market.Yes, Shares: bought.Shares})
	require.NoError(t, err)
	assert.True(t, sold.Gross.Lt(units("994")), "gross %s is backed by trade collateral", sold.Gross.Dec())

	bobPos, err := h.engine.Position(ctx, bob, 1)
	require.NoError(t, err)
	assert.True(t, bobPos.YesBalance.IsZero())

	p = h.pool(t, 1)
	value, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, value.Dec(), h.custody(t).Dec(), "custody backs the pool ledger")
}

func TestLiquidity_RoundTripAtGrownVaultRate(t *testing.T) {
	h := newHarness(t, harnessOpts{yieldBps: 100})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	h.clock.Advance(24 * time.Hour)
	h.createMarket(t, 2)

	added := h.add(t, bob, 2, "100")
	removed, err := h.engine.RemoveLiquidity(ctx, bob, 2, added.LPMinted)
	require.NoError(t, err)
	assert.Equal(t, units("100").Dec(), removed.TotalValue.Dec())
	assert.Equal(t, units("10000").Dec(), h.balance(t, bob).Dec())

	pos, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	removed, err = h.engine.RemoveLiquidity(ctx, alice, 1, &pos.LP)
	require.NoError(t, err)
	assert.Equal(t, units("1000").Dec(), removed.TotalValue.Dec())
}

func TestResolve_AfterLPExitPaysProRata(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	bought := h.buy(t, bob, 1, market.Yes, "1000")
	pos, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	_, err = h.engine.RemoveLiquidity(ctx, alice, 1, &pos.LP)
	require.NoError(t, err)

	h.clock.Advance(week)
	s, err := h.engine.Resolve(ctx, 1, market.Yes)
	require.NoError(t, err)
	assert.True(t, s.Deficit.IsZero(), "no LP collateral left to cover winners")
	assert.True(t, s.Rate.Lt(domain.One), "rate %s", s.Rate.Dec())

	r, err := h.engine.Redeem(ctx, bob, 1)
	require.NoError(t, err)
	assert.True(t, r.Payout.Lt(bought.Shares))
	assert.False(t, r.Payout.Gt(units("994")), "payout %s above trade collateral", r.Payout.Dec())

	p := h.pool(t, 1)
	value, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, value.Dec(), h.custody(t).Dec())
}

func TestSell_VaultShortfallReverts(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	bought := h.buy(t, bob, 1, market.Yes, "100")

	h.vault.SetLiquid(usdc, new(uint256.Int))
	poolBefore := h.pool(t, 1)
	posBefore, err := h.engine.Position(ctx, bob, 1)
	require.NoError(t, err)

	_, err = h.engine.Sell(ctx, bob, app.SellParams{MarketID: 1, Outcome: market.Yes, Shares: bought.Shares})
	assert.True(t, apperror.HasCode(err, apperror.CodeVaultWithdrawalShortfall), "got %v", err)

	assert.Equal(t, poolBefore, h.pool(t, 1))
	posAfter, err := h.engine.Position(ctx, bob, 1)
	require.NoError(t, err)
	assert.Equal(t, posBefore, posAfter)
	assert.Equal(t, units("9900").Dec(), h.balance(t, bob).Dec())

	h.vault.SetLiquid(usdc, nil)
	_, err = h.engine.Sell(ctx, bob, app.SellParams{MarketID: 1, Outcome: market.Yes, Shares: bought.Shares})
	assert.NoError(t, err)
}

func TestPayout_TransferFailureReparksCollateral(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	poolBefore := h.pool(t, 1)
	posBefore, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)

	h.ledger.setFail(true)
	_, err = h.engine.RemoveLiquidity(ctx, alice, 1, &posBefore.LP)
	require.Error(t, err)
	h.ledger.setFail(false)

	assert.Equal(t, poolBefore, h.pool(t, 1))
	posAfter, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, posBefore, posAfter)
	assert.Equal(t, units("1000").Dec(), h.balance(t, h.vault.Address()).Dec())
	assert.True(t, h.balance(t, app.DefaultEscrow).IsZero())
}

func TestResolveAndRedeem(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	winner := h.buy(t, bob, 1, market.Yes, "100")

	_, err := h.engine.Resolve(ctx, 1, market.Yes)
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketNotExpired), "got %v", err)
	_, err = h.engine.Redeem(ctx, bob, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketNotExpired), "got %v", err)

	h.clock.Advance(week)
	s, err := h.engine.Resolve(ctx, 1, market.Yes)
	require.NoError(t, err)
	assert.Equal(t, domain.One.Dec(), s.Rate.Dec())
	assert.Equal(t, "93568906736232596424", s.Deficit.Dec())

	m, err := h.registry.Market(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, market.Yes, m.Outcome)

	_, err = h.engine.Resolve(ctx, 1, market.No)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyResolved), "got %v", err)
	_, err = h.engine.Buy(ctx, carol, app.BuyParams{MarketID: 1, Outcome: market.No, AmountIn: units("100")})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyResolved), "got %v", err)

	_, err = h.engine.Redeem(ctx, carol, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance), "got %v", err)

	r, err := h.engine.Redeem(ctx, bob, 1)
	require.NoError(t, err)
	assert.Equal(t, winner.Shares.Dec(), r.Payout.Dec())
	want := new(uint256.Int).Add(units("9900"), winner.Shares)
	assert.Equal(t, want.Dec(), h.balance(t, bob).Dec())

	pos, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	_, err = h.engine.RemoveLiquidity(ctx, alice, 1, &pos.LP)
	require.NoError(t, err)

	assert.True(t, h.custody(t).IsZero(), "everything paid out, custody left %s", h.custody(t).Dec())
	assert.Equal(t, units("20000").Dec(), new(uint256.Int).Add(h.balance(t, alice), h.balance(t, bob)).Dec())

	events, err := h.engine.Events(ctx, 1, 3)
	require.NoError(t, err)
	kinds := []domain.EventKind{events[0].Kind, events[1].Kind, events[2].Kind}
	assert.Equal(t, []domain.EventKind{domain.EventResolve, domain.EventRedeem, domain.EventRemoveLiquidity}, kinds)
}

func TestResolve_HarvestsVaultYield(t *testing.T) {
	h := newHarness(t, harnessOpts{yieldBps: 100})
	h.createMarket(t, 1)
	ctx := context.Background()

	h.add(t, alice, 1, "1000")
	h.clock.Advance(week)

	_, err := h.engine.Resolve(ctx, 1, market.Invalid)
	require.NoError(t, err)
	p := h.pool(t, 1)
	assert.Equal(t, units("70").Dec(), p.TotalFee.Dec(), "7 days at 1% a day")

	pos, err := h.engine.Position(ctx, alice, 1)
	require.NoError(t, err)
	removed, err := h.engine.RemoveLiquidity(ctx, alice, 1, &pos.LP)
	require.NoError(t, err)
	assert.Equal(t, units("1070").Dec(), removed.TotalValue.Dec())
	assert.Equal(t, units("10070").Dec(), h.balance(t, alice).Dec())
}

func TestEngine_WithoutVaultKeepsCollateralIdle(t *testing.T) {
	h := newHarness(t, harnessOpts{noVault: true})
	h.createMarket(t, 1)
	ctx := context.Background()

	q := h.buy(t, alice, 1, market.Yes, "100")
	p := h.pool(t, 1)
	assert.Equal(t, units("100").Dec(), p.Idle.Dec())
	assert.Equal(t, units("100").Dec(), h.balance(t, app.DefaultEscrow).Dec())

	_, err := h.engine.Sell(ctx, alice, app.SellParams{MarketID: 1, Outcome: market.Yes, Shares: q.Shares})
	require.NoError(t, err)
	held, err := h.engine.VaultBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, held.IsZero())
}

func TestEngine_SinkFailuresDoNotFailCalls(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	h.sink.err = errors.New("sink down")

	h.buy(t, alice, 1, market.Yes, "50")
	assert.Len(t, h.sink.events, 2)
}

func TestEngine_ConcurrentCallsAcrossMarkets(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.createMarket(t, 1)
	h.createMarket(t, 2)
	ctx := context.Background()

	const (
		traders = 8
		rounds  = 5
	)
	accounts := make([]common.Address, traders)
	for i := range accounts {
		accounts[i] = common.HexToAddress(fmt.Sprintf("0x%x", 0x1000+i))
		require.NoError(t, h.ledger.Mint(ctx, usdc, accounts[i], units("1000")))
	}

	var wg sync.WaitGroup
	for i, acct := range accounts {
		wg.Add(1)
		go func(i int, acct common.Address) {
			defer wg.Done()
			id := uint64(i%2 + 1)
			side := market.Yes
			if i%4 >= 2 {
				side = market.No
			}
			for r := 0; r < rounds; r++ {
				if _, err := h.engine.Buy(ctx, acct, app.BuyParams{MarketID: id, Outcome: side, AmountIn: units("20")}); err != nil {
					t.Errorf("buy: %v", err)
					return
				}
				if _, err := h.engine.AddLiquidity(ctx, acct, app.AddLiquidityParams{MarketID: id, Amount: units("10")}); err != nil {
					t.Errorf("add: %v", err)
					return
				}
			}
		}(i, acct)
	}
	wg.Wait()

	perMarket := units(fmt.Sprint((traders / 2) * rounds * 30))
	total := new(uint256.Int)
	for _, id := range []uint64{1, 2} {
		p := h.pool(t, id)
		value, err := p.Value()
		require.NoError(t, err)
		assert.Equal(t, perMarket.Dec(), value.Dec(), "market %d", id)

		positions, err := h.engine.Positions(ctx, id)
		require.NoError(t, err)
		yes, no, lp := new(uint256.Int), new(uint256.Int), new(uint256.Int)
		for _, pos := range positions {
			yes.Add(yes, &pos.YesBalance)
			no.Add(no, &pos.NoBalance)
			lp.Add(lp, &pos.LP)
		}
		assert.Equal(t, p.YesSupply.Dec(), yes.Dec())
		assert.Equal(t, p.NoSupply.Dec(), no.Dec())
		assert.Equal(t, p.TotalLP.Dec(), lp.Dec())
		total.Add(total, value)
	}
	assert.Equal(t, total.Dec(), h.custody(t).Dec())

	snaps := h.engine.Snapshot(ctx)
	require.Len(t, snaps, 2)
	assert.Equal(t, uint64(1), snaps[0].Market.ID)
	assert.Equal(t, traders/2, snaps[1].Holders)
}

func BenchmarkEngine_Buy(b *testing.B) {
	ctx := context.Background()
	clk := clock.NewFake(genesis)
	registry, _ := marketapp.NewRegistry(marketapp.Options{FeeBps: 60, Admin: admin}, asset.DefaultRegistry(), clk, nil, nil)
	_, _ = registry.SetTokenInfo(ctx, admin, usdc, true, units("1"))
	ledger := memory.NewLedger()
	engine, _ := app.NewEngine(app.Deps{Markets: registry, Ledger: ledger, Clock: clk}, common.Address{})
	registry.Subscribe(engine)
	_, _ = registry.CreateMarket(ctx, alice, market.CreateParams{
		MarketID: 1, Period: week, VirtualLiquidity: units("1000000"), Quest: "bench", Collateral: usdc,
	})
	_ = ledger.Mint(ctx, usdc, alice, units("1000000000"))

	params := app.BuyParams{MarketID: 1, Outcome: market.Yes, AmountIn: units("1")}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Buy(ctx, alice, params); err != nil {
			b.Fatal(err)
		}
	}
}
