package app

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
)

// PoolSnapshot is a consistent view of one market's pool.
type PoolSnapshot struct {
	Market   market.Market
	Pool     domain.Pool
	PriceYes *uint256.Int
	PriceNo  *uint256.Int
	Holders  int
}

func (e *Engine) read(marketID uint64, fn func(st *marketState) error) error {
	st, err := e.state(marketID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return fn(st)
}

// Prices returns the YES and NO prices of a market.
func (e *Engine) Prices(_ context.Context, marketID uint64) (yes, no *uint256.Int, err error) {
	err = e.read(marketID, func(st *marketState) error {
		var err error
		yes, no, err = st.pool.Prices()
		return err
	})
	return yes, no, err
}

// Pool returns a copy of the pool ledger (getLiquidityInfo).
func (e *Engine) Pool(_ context.Context, marketID uint64) (domain.Pool, error) {
	var pool domain.Pool
	err := e.read(marketID, func(st *marketState) error {
		pool = st.pool
		return nil
	})
	return pool, err
}

// Position returns the holdings of account in a market. Accounts that
// never interacted hold a zero position.
func (e *Engine) Position(_ context.Context, account common.Address, marketID uint64) (domain.Position, error) {
	var pos domain.Position
	err := e.read(marketID, func(st *marketState) error {
		if p, ok := st.positions[account]; ok {
			pos = *p
		}
		return nil
	})
	return pos, err
}

// Positions returns every position of a market.
func (e *Engine) Positions(_ context.Context, marketID uint64) (map[common.Address]domain.Position, error) {
	out := make(map[common.Address]domain.Position)
	err := e.read(marketID, func(st *marketState) error {
		for acct, p := range st.positions {
			out[acct] = *p
		}
		return nil
	})
	return out, err
}

// Snapshot returns every pool ordered by market id.
func (e *Engine) Snapshot(_ context.Context) []PoolSnapshot {
	e.mu.RLock()
	states := make([]*marketState, 0, len(e.states))
	for _, st := range e.states {
		states = append(states, st)
	}
	e.mu.RUnlock()

	out := make([]PoolSnapshot, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		snap := PoolSnapshot{Market: st.market, Pool: st.pool, Holders: len(st.positions)}
		if yes, no, err := st.pool.Prices(); err == nil {
			snap.PriceYes, snap.PriceNo = yes, no
		}
		st.mu.Unlock()
		out = append(out, snap)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Market.ID < out[j].Market.ID })
	return out
}

// Events returns the most recent journal entries of a market, oldest first.
func (e *Engine) Events(ctx context.Context, marketID uint64, limit int) ([]domain.Event, error) {
	if _, err := e.state(marketID); err != nil {
		return nil, err
	}
	if e.journal == nil {
		return nil, nil
	}
	return e.journal.List(ctx, marketID, limit)
}

// VaultBalance values the pool's vault shares (CollateralVault.balanceOf).
func (e *Engine) VaultBalance(ctx context.Context, marketID uint64) (*uint256.Int, error) {
	var (
		token  common.Address
		shares uint256.Int
	)
	err := e.read(marketID, func(st *marketState) error {
		token = st.market.Collateral
		shares.Set(&st.pool.VaultShares)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if e.vault == nil || shares.IsZero() {
		return new(uint256.Int), nil
	}
	return e.vault.ConvertToAssets(ctx, token, &shares)
}
