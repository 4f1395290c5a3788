package domain

import (
	"testing"

	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

func TestAddThenRemove_ReturnsExactAmount(t *testing.T) {
	amounts := []string{"1", "10", "1000", "123456.000000000000000002"}

	for _, amt := range amounts {
		t.Run(amt, func(t *testing.T) {
			p := newTestPool(t, "1000", 60)
			priceBefore, _ := p.Price(market.Yes)

			add := mustAdd(t, &p, amt)
			if !add.LPMinted.Eq(units(amt)) {
				t.Errorf("first LP minted %s, want %s", add.LPMinted.Dec(), units(amt).Dec())
			}
			if !p.YesAmount.Eq(&p.NoAmount) {
				t.Errorf("first deposit should split evenly: yes=%s no=%s", p.YesAmount.Dec(), p.NoAmount.Dec())
			}

			rm, err := p.QuoteRemove(add.LPMinted)
			if err != nil {
				t.Fatalf("QuoteRemove: %v", err)
			}
			if err := p.ApplyRemove(rm); err != nil {
				t.Fatalf("ApplyRemove: %v", err)
			}

			if !rm.TotalValue.Eq(units(amt)) {
				t.Errorf("removed %s, want %s", rm.TotalValue.Dec(), units(amt).Dec())
			}
			if !rm.FeeShare.IsZero() {
				t.Errorf("fee share = %s, want 0", rm.FeeShare.Dec())
			}
			priceAfter, _ := p.Price(market.Yes)
			if !priceAfter.Eq(priceBefore) {
				t.Errorf("price moved %s -> %s", priceBefore.Dec(), priceAfter.Dec())
			}
			if !p.TotalLP.IsZero() || !p.LPCollateral.IsZero() || !p.YesAmount.IsZero() || !p.NoAmount.IsZero() {
				t.Errorf("pool not empty after full removal: %+v", p)
			}
		})
	}
}

func TestAdd_KeepsPriceAfterTrades(t *testing.T) {
	p := newTestPool(t, "1000", 60)
	mustAdd(t, &p, "400")
	mustBuy(t, &p, market.Yes, "230")
	mustBuy(t, &p, market.No, "15")

	before, _ := p.Price(market.Yes)
	mustAdd(t, &p, "777.77")
	after, _ := p.Price(market.Yes)

	diff := new(uint256.Int)
	if after.Gt(before) {
		diff.Sub(after, before)
	} else {
		diff.Sub(before, after)
	}
	if diff.GtUint64(1) {
		t.Errorf("add moved price by %s wei", diff.Dec())
	}
}

func TestAdd_MintsAgainstPoolValue(t *testing.T) {
	p := newTestPool(t, "1000", 60)
	mustAdd(t, &p, "1000")
	mustBuy(t, &p, market.Yes, "500")

	value, err := p.Value()
	if err != nil {
		t.Fatal(err)
	}
	totalLP := new(uint256.Int).Set(&p.TotalLP)

	q := mustAdd(t, &p, "300")

	want := new(uint256.Int).Mul(totalLP, units("300"))
	want.Div(want, value)
	if !q.LPMinted.Eq(want) {
		t.Errorf("minted %s, want %s", q.LPMinted.Dec(), want.Dec())
	}
	if !q.LPMinted.Lt(units("300")) {
		t.Error("pool value above principal should mint fewer LP than deposited")
	}
}

func TestRemove_DistributesFeesProRata(t *testing.T) {
	p := newTestPool(t, "1000", 60)
	mustAdd(t, &p, "600")
	mustAdd(t, &p, "400")
	mustBuy(t, &p, market.No, "1000")

	quarter := new(uint256.Int).Rsh(&p.TotalLP, 2)
	q, err := p.QuoteRemove(quarter)
	if err != nil {
		t.Fatal(err)
	}

	wantFee := new(uint256.Int).Rsh(&p.TotalFee, 2)
	if !q.FeeShare.Eq(wantFee) {
		t.Errorf("fee share %s, want %s", q.FeeShare.Dec(), wantFee.Dec())
	}
	if q.FeeShare.IsZero() {
		t.Error("expected a positive fee share after trading")
	}
	wantTotal := new(uint256.Int).Add(q.FeeShare, q.PrincipalShare)
	if !q.TotalValue.Eq(wantTotal) {
		t.Error("total must be fee share plus principal share")
	}
}

func TestQuoteRemove_IsPure(t *testing.T) {
	p := newTestPool(t, "1000", 60)
	mustAdd(t, &p, "1000")
	mustBuy(t, &p, market.Yes, "321")

	snapshot := p
	lp := units("250")

	first, err := p.QuoteRemove(lp)
	if err != nil {
		t.Fatal(err)
	}
	if p != snapshot {
		t.Fatal("QuoteRemove mutated the pool")
	}

	second, err := p.QuoteRemove(lp)
	if err != nil {
		t.Fatal(err)
	}
	if !first.FeeShare.Eq(second.FeeShare) || !first.TotalValue.Eq(second.TotalValue) {
		t.Error("estimate is not deterministic")
	}
}

func TestQuoteRemove_Rejections(t *testing.T) {
	p := newTestPool(t, "1000", 60)
	mustAdd(t, &p, "10")

	if _, err := p.QuoteRemove(new(uint256.Int)); !apperror.HasCode(err, apperror.CodeInvalidInput) {
		t.Errorf("zero lp: %v", err)
	}
	if _, err := p.QuoteRemove(units("11")); !apperror.HasCode(err, apperror.CodeInsufficientBalance) {
		t.Errorf("lp above supply: %v", err)
	}
}

func TestQuoteAdd_Rejections(t *testing.T) {
	p := newTestPool(t, "1000", 60)
	if _, err := p.QuoteAdd(new(uint256.Int)); !apperror.HasCode(err, apperror.CodeInvalidInput) {
		t.Errorf("zero amount: %v", err)
	}
}

type order struct {
	side   market.Outcome
	amount string
}

func TestRemoveAll_LeavesTraderSharesSellable(t *testing.T) {
	tests := []struct {
		name     string
		buys     []order
		sellSide market.Outcome
	}{
		{
			name:     "yes holder",
			buys:     []order{{market.Yes, "1000"}},
			sellSide: market.Yes,
		},
		{
			name:     "no holder",
			buys:     []order{{market.No, "700"}},
			sellSide: market.No,
		},
		{
			name: "both sides",
			buys: []order{{market.Yes, "300"}, {market.No, "200"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool(t, "1000", 60)
			mustAdd(t, &p, "1000")
			for _, b := range tt.buys {
				mustBuy(t, &p, b.side, b.amount)
			}
			before, _ := p.Price(market.Yes)

			rm, err := p.QuoteRemove(&p.TotalLP)
			if err != nil {
				t.Fatalf("QuoteRemove: %v", err)
			}
			if err := p.ApplyRemove(rm); err != nil {
				t.Fatalf("ApplyRemove: %v", err)
			}
			if !p.TotalLP.IsZero() || !p.LPCollateral.IsZero() {
				t.Fatalf("LP left after full removal: lp=%s coll=%s", p.TotalLP.Dec(), p.LPCollateral.Dec())
			}

			if p.NoAmount.Lt(&p.YesSupply) {
				t.Errorf("noAmount %s below yes supply %s", p.NoAmount.Dec(), p.YesSupply.Dec())
			}
			if p.YesAmount.Lt(&p.NoSupply) {
				t.Errorf("yesAmount %s below no supply %s", p.YesAmount.Dec(), p.NoSupply.Dec())
			}

			after, _ := p.Price(market.Yes)
			diff := new(uint256.Int)
			if after.Gt(before) {
				diff.Sub(after, before)
			} else {
				diff.Sub(before, after)
			}
			if diff.GtUint64(1) {
				t.Errorf("removal moved price by %s wei", diff.Dec())
			}

			if tt.sellSide == market.Unresolved {
				return
			}
			q, err := p.QuoteSell(tt.sellSide, p.supply(tt.sellSide))
			if err != nil {
				t.Fatalf("QuoteSell of the full %s supply: %v", tt.sellSide, err)
			}
			if q.Gross.Gt(&p.TradeCollateral) {
				t.Errorf("gross %s above trade collateral %s", q.Gross.Dec(), p.TradeCollateral.Dec())
			}
			if err := p.ApplySell(q); err != nil {
				t.Fatalf("ApplySell: %v", err)
			}
		})
	}
}
