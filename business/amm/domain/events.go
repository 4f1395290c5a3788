package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/asset"
)

// EventKind names a committed ledger change.
type EventKind string

const (
	EventPoolCreated     EventKind = "pool_created"
	EventBuy             EventKind = "buy"
	EventSell            EventKind = "sell"
	EventAddLiquidity    EventKind = "add_liquidity"
	EventRemoveLiquidity EventKind = "remove_liquidity"
	EventResolve         EventKind = "resolve"
	EventRedeem          EventKind = "redeem"
)

// Event is emitted after every committed call. Collateral is what moved
// in or out; Shares is outcome shares for trades and LP for liquidity.
type Event struct {
	ID         uuid.UUID
	Kind       EventKind
	MarketID   uint64
	Account    common.Address
	Outcome    market.Outcome
	Collateral uint256.Int
	Shares     uint256.Int
	Fee        uint256.Int
	PriceYes   uint256.Int
	PriceNo    uint256.Int
	Timestamp  time.Time
}

// NewEvent stamps a new event with an id and the current prices of pool.
func NewEvent(kind EventKind, pool *Pool, account common.Address, now time.Time) Event {
	e := Event{
		ID:        uuid.New(),
		Kind:      kind,
		MarketID:  pool.MarketID,
		Account:   account,
		Timestamp: now.UTC(),
	}
	if yes, no, err := pool.Prices(); err == nil {
		e.PriceYes.Set(yes)
		e.PriceNo.Set(no)
	}
	return e
}

type eventJSON struct {
	ID         uuid.UUID      `json:"id"`
	Kind       EventKind      `json:"kind"`
	MarketID   uint64         `json:"marketId"`
	Account    common.Address `json:"account"`
	Outcome    market.Outcome `json:"outcome"`
	Collateral string         `json:"collateral"`
	Shares     string         `json:"shares"`
	Fee        string         `json:"fee"`
	PriceYes   string         `json:"priceYes"`
	PriceNo    string         `json:"priceNo"`
	Timestamp  time.Time      `json:"timestamp"`
}

// MarshalJSON renders amounts as decimal strings in whole units.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:         e.ID,
		Kind:       e.Kind,
		MarketID:   e.MarketID,
		Account:    e.Account,
		Outcome:    e.Outcome,
		Collateral: asset.ToDecimal(&e.Collateral).String(),
		Shares:     asset.ToDecimal(&e.Shares).String(),
		Fee:        asset.ToDecimal(&e.Fee).String(),
		PriceYes:   asset.ToDecimal(&e.PriceYes).String(),
		PriceNo:    asset.ToDecimal(&e.PriceNo).String(),
		Timestamp:  e.Timestamp,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w eventJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	fields := []struct {
		src string
		dst *uint256.Int
	}{
		{w.Collateral, &e.Collateral},
		{w.Shares, &e.Shares},
		{w.Fee, &e.Fee},
		{w.PriceYes, &e.PriceYes},
		{w.PriceNo, &e.PriceNo},
	}
	for _, f := range fields {
		if f.src == "" {
			f.dst.Clear()
			continue
		}
		v, err := asset.ParseUnits(f.src)
		if err != nil {
			return fmt.Errorf("event %s: %w", w.ID, err)
		}
		f.dst.Set(v)
	}

	e.ID = w.ID
	e.Kind = w.Kind
	e.MarketID = w.MarketID
	e.Account = w.Account
	e.Outcome = w.Outcome
	e.Timestamp = w.Timestamp
	return nil
}
