package vault_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/prediction-amm/business/amm/infra/memory"
	"github.com/fd1az/prediction-amm/business/amm/infra/vault"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/circuitbreaker"
	"github.com/fd1az/prediction-amm/internal/clock"
)

var (
	usdc   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	escrow = common.HexToAddress("0xa11c")
)

func newVault(t *testing.T, yieldBps uint64) (*vault.Vault, *memory.Ledger, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ledger := memory.NewLedger()
	if err := ledger.Mint(context.Background(), usdc, escrow, asset.MustParseUnits("1000000")); err != nil {
		t.Fatal(err)
	}
	v := vault.New(ledger, vault.Options{Owner: escrow, YieldBpsPerDay: yieldBps, Clock: clk})
	return v, ledger, clk
}

func balance(t *testing.T, l *memory.Ledger, holder common.Address) *uint256.Int {
	t.Helper()
	b, err := l.BalanceOf(context.Background(), usdc, holder)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestVault_DepositWithdrawAtPar(t *testing.T) {
	ctx := context.Background()
	v, ledger, _ := newVault(t, 0)
	amount := asset.MustParseUnits("250")

	shares, err := v.Deposit(ctx, usdc, amount)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !shares.Eq(amount) {
		t.Errorf("shares = %s, want %s", shares.Dec(), amount.Dec())
	}
	if got := balance(t, ledger, v.Address()); !got.Eq(amount) {
		t.Errorf("vault holds %s", got.Dec())
	}

	burned, err := v.Withdraw(ctx, usdc, asset.MustParseUnits("100"), shares)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !burned.Eq(asset.MustParseUnits("100")) {
		t.Errorf("burned = %s", burned.Dec())
	}

	assets, left := v.Totals(usdc)
	if !assets.Eq(asset.MustParseUnits("150")) || !left.Eq(asset.MustParseUnits("150")) {
		t.Errorf("totals = %s assets, %s shares", assets.Dec(), left.Dec())
	}
}

func TestVault_AccruesDailyYield(t *testing.T) {
	ctx := context.Background()
	v, ledger, clk := newVault(t, 100) // 1% a day

	shares, err := v.Deposit(ctx, usdc, asset.MustParseUnits("1000"))
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(24 * time.Hour)
	got, err := v.ConvertToAssets(ctx, usdc, shares)
	if err != nil {
		t.Fatal(err)
	}
	if want := asset.MustParseUnits("1010"); !got.Eq(want) {
		t.Errorf("assets = %s, want %s", got.Dec(), want.Dec())
	}
	if got := balance(t, ledger, v.Address()); !got.Eq(asset.MustParseUnits("1010")) {
		t.Errorf("yield not minted to vault, holds %s", got.Dec())
	}

	// A later depositor buys in at the grown rate.
	more, err := v.Deposit(ctx, usdc, asset.MustParseUnits("101"))
	if err != nil {
		t.Fatal(err)
	}
	if want := asset.MustParseUnits("100"); !more.Eq(want) {
		t.Errorf("shares = %s, want %s", more.Dec(), want.Dec())
	}

	// Withdrawing the original principal burns fewer shares than it did to mint.
	burned, err := v.Withdraw(ctx, usdc, asset.MustParseUnits("1000"), shares)
	if err != nil {
		t.Fatal(err)
	}
	if !burned.Lt(shares) {
		t.Errorf("burned %s of %s", burned.Dec(), shares.Dec())
	}
}

func TestVault_WithdrawShortfall(t *testing.T) {
	ctx := context.Background()
	v, ledger, _ := newVault(t, 0)

	shares, err := v.Deposit(ctx, usdc, asset.MustParseUnits("100"))
	if err != nil {
		t.Fatal(err)
	}
	v.SetLiquid(usdc, asset.MustParseUnits("40"))

	tests := []struct {
		name      string
		amount    string
		maxShares *uint256.Int
	}{
		{"over liquid", "41", shares},
		{"over assets", "101", nil},
		{"over holder shares", "30", asset.MustParseUnits("20")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Withdraw(ctx, usdc, asset.MustParseUnits(tt.amount), tt.maxShares)
			if !apperror.HasCode(err, apperror.CodeVaultWithdrawalShortfall) {
				t.Fatalf("expected VAULT_WITHDRAWAL_SHORTFALL, got %v", err)
			}
		})
	}

	assets, left := v.Totals(usdc)
	if !assets.Eq(asset.MustParseUnits("100")) || !left.Eq(shares) {
		t.Errorf("failed withdrawals changed totals: %s / %s", assets.Dec(), left.Dec())
	}
	if got := balance(t, ledger, escrow); !got.Eq(asset.MustParseUnits("999900")) {
		t.Errorf("escrow = %s", got.Dec())
	}

	if _, err := v.Withdraw(ctx, usdc, asset.MustParseUnits("40"), shares); err != nil {
		t.Fatalf("withdraw within liquid: %v", err)
	}
	if _, err := v.Withdraw(ctx, usdc, uint256.NewInt(1), shares); !apperror.HasCode(err, apperror.CodeVaultWithdrawalShortfall) {
		t.Errorf("liquid should be exhausted, got %v", err)
	}
}

func TestVault_RoundsWithdrawalSharesUp(t *testing.T) {
	ctx := context.Background()
	v, _, clk := newVault(t, 5_000)

	shares, err := v.Deposit(ctx, usdc, uint256.NewInt(3_000_000))
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(24 * time.Hour) // assets 4_500_000 for 3_000_000 shares

	burned, err := v.Withdraw(ctx, usdc, uint256.NewInt(1), shares)
	if err != nil {
		t.Fatal(err)
	}
	if burned.Uint64() != 1 {
		t.Errorf("burned = %d, want 1", burned.Uint64())
	}
}

func TestVault_DepositIsWithdrawableAtGrownRate(t *testing.T) {
	ctx := context.Background()
	v, ledger, clk := newVault(t, 100)

	if _, err := v.Deposit(ctx, usdc, asset.MustParseUnits("1000")); err != nil {
		t.Fatal(err)
	}
	clk.Advance(24 * time.Hour) // 1010 assets for 1000 shares

	amount := asset.MustParseUnits("100")
	shares, err := v.Deposit(ctx, usdc, amount)
	if err != nil {
		t.Fatal(err)
	}
	if want := "99009900990099009901"; shares.Dec() != want {
		t.Errorf("shares = %s, want %s", shares.Dec(), want)
	}

	worth, err := v.ConvertToAssets(ctx, usdc, shares)
	if err != nil {
		t.Fatal(err)
	}
	if worth.Lt(amount) {
		t.Errorf("fresh shares worth %s, less than the %s deposited", worth.Dec(), amount.Dec())
	}

	before := balance(t, ledger, escrow)
	burned, err := v.Withdraw(ctx, usdc, amount, shares)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if burned.Gt(shares) {
		t.Errorf("burned %s of %s shares", burned.Dec(), shares.Dec())
	}
	if got := balance(t, ledger, escrow); !got.Eq(new(uint256.Int).Add(before, amount)) {
		t.Errorf("escrow = %s, want %s more than %s", got.Dec(), amount.Dec(), before.Dec())
	}
}

func TestVault_WithdrawRoundsHolderUp(t *testing.T) {
	tests := []struct {
		name      string
		amount    uint64
		maxShares uint64
		wantErr   bool
	}{
		{"exact", 3, 2, false},
		{"half wei short", 2, 1, false},
		{"whole wei short", 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			v, _, clk := newVault(t, 5_000)
			if _, err := v.Deposit(ctx, usdc, uint256.NewInt(3_000_000)); err != nil {
				t.Fatal(err)
			}
			clk.Advance(24 * time.Hour) // 1.5 wei per share

			burned, err := v.Withdraw(ctx, usdc, uint256.NewInt(tt.amount), uint256.NewInt(tt.maxShares))
			if tt.wantErr {
				if !apperror.HasCode(err, apperror.CodeVaultWithdrawalShortfall) {
					t.Fatalf("expected VAULT_WITHDRAWAL_SHORTFALL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Withdraw: %v", err)
			}
			if burned.Uint64() > tt.maxShares {
				t.Errorf("burned %d, holder has %d", burned.Uint64(), tt.maxShares)
			}
		})
	}
}

type failingVault struct{ calls int }

func (f *failingVault) Deposit(context.Context, common.Address, *uint256.Int) (*uint256.Int, error) {
	f.calls++
	return nil, errors.New("rpc down")
}

func (f *failingVault) Withdraw(context.Context, common.Address, *uint256.Int, *uint256.Int) (*uint256.Int, error) {
	f.calls++
	return nil, apperror.New(apperror.CodeVaultWithdrawalShortfall)
}

func (f *failingVault) ConvertToAssets(context.Context, common.Address, *uint256.Int) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func TestGuarded_OpensOnInfrastructureFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingVault{}

	cfg := circuitbreaker.DefaultConfig("vault")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	g := vault.NewGuarded(inner, cfg, nil)

	for i := 0; i < 3; i++ {
		if _, err := g.Withdraw(ctx, usdc, uint256.NewInt(1), nil); !apperror.HasCode(err, apperror.CodeVaultWithdrawalShortfall) {
			t.Fatalf("withdraw %d: %v", i, err)
		}
	}
	if g.State() != gobreaker.StateClosed {
		t.Fatalf("shortfalls tripped the breaker")
	}

	for i := 0; i < 2; i++ {
		_, _ = g.Deposit(ctx, usdc, uint256.NewInt(1))
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", g.State())
	}

	calls := inner.calls
	_, err := g.Deposit(ctx, usdc, uint256.NewInt(1))
	if !apperror.HasCode(err, apperror.CodeVaultUnavailable) {
		t.Errorf("expected VAULT_UNAVAILABLE, got %v", err)
	}
	if inner.calls != calls {
		t.Errorf("open breaker reached the vault")
	}
}
