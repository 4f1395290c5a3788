// Package ui provides the Bubble Tea dashboard for the prediction market AMM.
package ui

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	ammapp "github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/pkg/ui/components"
)

// MarketRow converts an engine snapshot into a table row.
func MarketRow(s ammapp.PoolSnapshot, now time.Time) components.MarketRow {
	liquidity := asset.ToDecimal(&s.Pool.LPCollateral).
		Add(asset.ToDecimal(&s.Pool.TradeCollateral)).
		Add(asset.ToDecimal(&s.Pool.TotalFee))

	row := components.MarketRow{
		ID:        s.Market.ID,
		Quest:     s.Market.Quest,
		Liquidity: liquidity,
		Holders:   s.Holders,
		Outcome:   s.Pool.Outcome.String(),
		Expired:   s.Market.Expired(now),
		UpdatedAt: now,
	}
	if s.PriceYes != nil {
		row.PriceYes = asset.ToDecimal(s.PriceYes)
	}
	if s.PriceNo != nil {
		row.PriceNo = asset.ToDecimal(s.PriceNo)
	}
	return row
}

// MarketRows converts every snapshot.
func MarketRows(snaps []ammapp.PoolSnapshot, now time.Time) []components.MarketRow {
	rows := make([]components.MarketRow, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, MarketRow(s, now))
	}
	return rows
}

// ActivityRow converts an event into a feed row.
func ActivityRow(e domain.Event) components.ActivityRow {
	row := components.ActivityRow{
		Time:       e.Timestamp.Local(),
		MarketID:   e.MarketID,
		Kind:       string(e.Kind),
		Account:    ShortAddress(e.Account),
		Collateral: asset.ToDecimal(&e.Collateral),
		Shares:     asset.ToDecimal(&e.Shares),
		Fee:        asset.ToDecimal(&e.Fee),
	}
	if e.Outcome.IsTerminal() {
		row.Outcome = e.Outcome.String()
	}
	return row
}

// ShortAddress renders 0x1234…abcd.
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func prices(e domain.Event) (yes, no decimal.Decimal) {
	return asset.ToDecimal(&e.PriceYes), asset.ToDecimal(&e.PriceNo)
}
