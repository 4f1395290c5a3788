package asset_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-amm/internal/asset"
)

var (
	usdc = asset.NewToken(asset.AddrUSDC, "USDC")
	dai  = asset.NewToken(asset.AddrDAI, "DAI")
)

func TestAmount_Basic(t *testing.T) {
	one := asset.NewAmount(usdc, uint256.NewInt(1e18))

	if one.IsZero() {
		t.Error("expected non-zero amount")
	}
	if !one.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", one.ToDecimal())
	}
	if one.String() != "1 USDC" {
		t.Errorf("expected '1 USDC', got '%s'", one.String())
	}
}

func TestAmount_AddSub(t *testing.T) {
	one := asset.NewAmount(usdc, uint256.NewInt(1e18))
	two := asset.NewAmount(usdc, uint256.NewInt(2e18))

	sum, err := one.Add(two)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.ToDecimal().Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected 3, got %s", sum.ToDecimal())
	}

	if _, err := one.Sub(two); !errors.Is(err, asset.ErrNegativeResult) {
		t.Errorf("expected ErrNegativeResult, got %v", err)
	}
}

func TestAmount_CannotMixTokens(t *testing.T) {
	a := asset.NewAmount(usdc, uint256.NewInt(1))
	b := asset.NewAmount(dai, uint256.NewInt(1))

	if _, err := a.Add(b); !errors.Is(err, asset.ErrTokenMismatch) {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestAmount_Immutable(t *testing.T) {
	raw := uint256.NewInt(5)
	a := asset.NewAmount(usdc, raw)
	raw.SetUint64(99)

	if a.Raw().Uint64() != 5 {
		t.Error("amount must copy its raw value")
	}
	a.Raw().SetUint64(7)
	if a.Raw().Uint64() != 5 {
		t.Error("Raw must return a copy")
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"1", "1000000000000000000", nil},
		{"0.6", "600000000000000000", nil},
		{"100.5", "100500000000000000000", nil},
		{"0.000000000000000001", "1", nil},
		{"0.0000000000000000001", "", asset.ErrTooManyDecimals},
		{"-1", "", asset.ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := asset.ParseUnits(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Dec() != tt.want {
				t.Errorf("ParseUnits(%s) = %s, want %s", tt.in, got.Dec(), tt.want)
			}
		})
	}

	if _, err := asset.ParseUnits("abc"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestPrice_Percent(t *testing.T) {
	p := asset.NewPrice(asset.MustParseUnits("0.54351"))
	if got := p.Percent(); got != "54.35%" {
		t.Errorf("Percent = %s", got)
	}
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()
	if r.Count() != 2 {
		t.Fatalf("Count = %d", r.Count())
	}

	tok, ok := r.GetBySymbol("USDC")
	if !ok || tok.Address() != asset.AddrUSDC {
		t.Fatalf("USDC lookup failed: %v %v", tok, ok)
	}

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	first := r.Ensure(addr, "TKN")
	second := r.Ensure(addr, "OTHER")
	if first != second || second.Symbol() != "TKN" {
		t.Error("Ensure must return the existing token")
	}

	all := r.All()
	if len(all) != 3 || all[0].Symbol() != "DAI" {
		t.Errorf("All not ordered by symbol: %v", all)
	}
}

func BenchmarkParseUnits(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = asset.ParseUnits("12345.678901234567890123")
	}
}
