package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/prediction-amm/business/amm/infra/memory"
	marketapp "github.com/fd1az/prediction-amm/business/market/app"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/business/oracle/app"
	"github.com/fd1az/prediction-amm/business/oracle/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/clock"
)

var (
	admin   = common.HexToAddress("0xad")
	alice   = common.HexToAddress("0xa1")
	bob     = common.HexToAddress("0xb0")
	carol   = common.HexToAddress("0xc0")
	genesis = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	week    = 7 * 24 * time.Hour
)

type recordingResolver struct {
	registry *marketapp.Registry
	fail     error
	calls    []market.Outcome
}

func (r *recordingResolver) Resolve(ctx context.Context, id uint64, outcome market.Outcome) error {
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, outcome)
	return r.registry.MarkResolved(ctx, id, outcome)
}

type harness struct {
	svc      *app.Service
	registry *marketapp.Registry
	ledger   *memory.Ledger
	resolver *recordingResolver
	clock    *clock.Fake
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewFake(genesis)

	registry, err := marketapp.NewRegistry(marketapp.Options{FeeBps: 60, Admin: admin}, asset.DefaultRegistry(), clk, nil, nil)
	require.NoError(t, err)
	_, err = registry.SetTokenInfo(ctx, admin, asset.AddrUSDC, true, asset.MustParseUnits("10"))
	require.NoError(t, err)

	_, err = registry.CreateMarket(ctx, alice, market.CreateParams{
		MarketID:         1,
		Period:           week,
		VirtualLiquidity: asset.MustParseUnits("1000"),
		Quest:            "Will it rain tomorrow?",
		Collateral:       asset.AddrUSDC,
	})
	require.NoError(t, err)

	ledger := memory.NewLedger()
	for _, acct := range []common.Address{alice, bob} {
		require.NoError(t, ledger.Mint(ctx, asset.AddrUSDC, acct, asset.MustParseUnits("1000")))
	}

	resolver := &recordingResolver{registry: registry}
	svc, err := app.NewService(app.Options{
		Liveness: 2 * time.Hour,
		MinBond:  asset.MustParseUnits("100"),
	}, registry, ledger, resolver, clk, nil)
	require.NoError(t, err)

	return &harness{svc: svc, registry: registry, ledger: ledger, resolver: resolver, clock: clk}
}

func (h *harness) balance(t *testing.T, acct common.Address) string {
	t.Helper()
	b, err := h.ledger.BalanceOf(context.Background(), asset.AddrUSDC, acct)
	require.NoError(t, err)
	return asset.FormatUnits(b, 0)
}

func units(s string) *uint256.Int { return asset.MustParseUnits(s) }

func TestNewService_Validates(t *testing.T) {
	h := newHarness(t)

	_, err := app.NewService(app.Options{Liveness: time.Hour}, nil, h.ledger, h.resolver, nil, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfig))

	_, err = app.NewService(app.Options{}, h.registry, h.ledger, h.resolver, nil, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfig))
}

func TestPropose_BeforeExpiry(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Propose(context.Background(), alice, 1, market.Yes, units("100"))
	assert.True(t, apperror.HasCode(err, apperror.CodeMarketNotExpired), "got %v", err)
	assert.Equal(t, "1000", h.balance(t, alice))
}

func TestPropose_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		proposer common.Address
		marketID uint64
		outcome  market.Outcome
		bond     *uint256.Int
		code     apperror.Code
	}{
		{"unresolved outcome", alice, 1, market.Unresolved, units("100"), apperror.CodeInvalidInput},
		{"bond below minimum", alice, 1, market.Yes, units("99"), apperror.CodeInvalidInput},
		{"missing bond", alice, 1, market.Yes, nil, apperror.CodeInvalidInput},
		{"unknown market", alice, 9, market.Yes, units("100"), apperror.CodeMarketNotFound},
		{"unfunded proposer", carol, 1, market.No, units("100"), apperror.CodeInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.clock.Advance(week)

			_, err := h.svc.Propose(context.Background(), tt.proposer, tt.marketID, tt.outcome, tt.bond)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)

			_, err = h.svc.Proposal(context.Background(), tt.marketID)
			assert.True(t, apperror.HasCode(err, apperror.CodeProposalNotFound))
		})
	}
}

func TestPropose_OnePendingPerMarket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	_, err := h.svc.Propose(ctx, alice, 1, market.Yes, units("100"))
	require.NoError(t, err)

	_, err = h.svc.Propose(ctx, bob, 1, market.No, units("100"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState), "got %v", err)
	assert.Equal(t, "1000", h.balance(t, bob))
}

func TestFinalize_AfterLiveness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	p, err := h.svc.Propose(ctx, alice, 1, market.Yes, units("150"))
	require.NoError(t, err)
	assert.Equal(t, domain.Proposed, p.State)
	assert.Equal(t, genesis.Add(week+2*time.Hour), p.Deadline)
	assert.Equal(t, "850", h.balance(t, alice))
	assert.Equal(t, "150", h.balance(t, app.DefaultBondEscrow))

	_, err = h.svc.Finalize(ctx, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeLivenessActive), "got %v", err)

	h.clock.Advance(2 * time.Hour)
	outcome, err := h.svc.Finalize(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, market.Yes, outcome)
	assert.Equal(t, "1000", h.balance(t, alice))
	assert.Equal(t, "0", h.balance(t, app.DefaultBondEscrow))
	assert.Equal(t, []market.Outcome{market.Yes}, h.resolver.calls)

	m, err := h.registry.Market(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, market.Yes, m.Outcome)

	p, err = h.svc.Proposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Finalized, p.State)
	assert.Equal(t, market.Yes, p.Resolution)

	_, err = h.svc.Finalize(ctx, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyResolved))
	_, err = h.svc.Propose(ctx, bob, 1, market.No, units("100"))
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyResolved))
}

func TestDispute_SettledByAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	_, err := h.svc.Propose(ctx, alice, 1, market.Yes, units("100"))
	require.NoError(t, err)

	_, err = h.svc.Dispute(ctx, alice, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput), "self dispute: %v", err)

	h.clock.Advance(time.Hour)
	p, err := h.svc.Dispute(ctx, bob, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Disputed, p.State)
	assert.Equal(t, bob, p.Disputer)
	assert.Equal(t, "900", h.balance(t, bob))
	assert.Equal(t, "200", h.balance(t, app.DefaultBondEscrow))

	_, err = h.svc.Dispute(ctx, carol, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))

	h.clock.Advance(2 * time.Hour)
	_, err = h.svc.Finalize(ctx, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState), "disputed proposals wait for the admin")

	_, err = h.svc.Settle(ctx, alice, 1, market.Yes)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	_, err = h.svc.Settle(ctx, admin, 1, market.Unresolved)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	p, err = h.svc.Settle(ctx, admin, 1, market.No)
	require.NoError(t, err)
	assert.Equal(t, domain.Settled, p.State)
	assert.Equal(t, market.No, p.Resolution)
	assert.Equal(t, "900", h.balance(t, alice))
	assert.Equal(t, "1100", h.balance(t, bob))
	assert.Equal(t, "0", h.balance(t, app.DefaultBondEscrow))

	m, err := h.registry.Market(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, market.No, m.Outcome)
}

func TestSettle_ProposerWinsMatchingRuling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	_, err := h.svc.Propose(ctx, alice, 1, market.Invalid, units("100"))
	require.NoError(t, err)
	_, err = h.svc.Dispute(ctx, bob, 1)
	require.NoError(t, err)

	_, err = h.svc.Settle(ctx, admin, 1, market.Invalid)
	require.NoError(t, err)
	assert.Equal(t, "1100", h.balance(t, alice))
	assert.Equal(t, "900", h.balance(t, bob))
}

func TestSettle_RequiresDispute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	_, err := h.svc.Settle(ctx, admin, 1, market.Yes)
	assert.True(t, apperror.HasCode(err, apperror.CodeProposalNotFound))

	_, err = h.svc.Propose(ctx, alice, 1, market.Yes, units("100"))
	require.NoError(t, err)
	_, err = h.svc.Settle(ctx, admin, 1, market.Yes)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestDispute_AfterLivenessRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	_, err := h.svc.Propose(ctx, alice, 1, market.Yes, units("100"))
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	_, err = h.svc.Dispute(ctx, bob, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState), "got %v", err)
	assert.Equal(t, "1000", h.balance(t, bob))
}

func TestFinalize_ResolverFailureKeepsBondLocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.clock.Advance(week)

	_, err := h.svc.Propose(ctx, alice, 1, market.No, units("100"))
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	h.resolver.fail = errors.New("engine down")
	_, err = h.svc.Finalize(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, "900", h.balance(t, alice))
	assert.Equal(t, "100", h.balance(t, app.DefaultBondEscrow))

	p, err := h.svc.Proposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Proposed, p.State)

	h.resolver.fail = nil
	outcome, err := h.svc.Finalize(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, market.No, outcome)
	assert.Equal(t, "1000", h.balance(t, alice))
}
