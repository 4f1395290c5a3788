package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

// Resolve settles the pool of an expired market and records the outcome
// in the market registry.
func (e *Engine) Resolve(ctx context.Context, marketID uint64, outcome market.Outcome) (domain.Settlement, error) {
	var out domain.Settlement
	err := e.transact(ctx, "resolve", marketID, common.Address{}, func(tx *txn) error {
		st := tx.st
		if st.pool.Settled() {
			return apperror.New(apperror.CodeAlreadyResolved,
				apperror.WithContext(fmt.Sprintf("market %d resolved %s", marketID, st.pool.Outcome)))
		}
		if !st.market.Expired(e.clock.Now()) {
			return apperror.New(apperror.CodeMarketNotExpired,
				apperror.WithContext(fmt.Sprintf("market %d ends at %s", marketID, st.market.EndTime)))
		}

		if err := e.harvest(tx); err != nil {
			return err
		}
		s, err := st.pool.Settle(outcome)
		if err != nil {
			return err
		}
		if err := e.markets.MarkResolved(tx.ctx, marketID, outcome); err != nil {
			return err
		}
		st.market.Outcome = outcome

		ev := domain.NewEvent(domain.EventResolve, &st.pool, common.Address{}, e.clock.Now())
		ev.Outcome = outcome
		ev.Collateral.Set(s.Liability)
		tx.emit(ev)

		out = s
		return nil
	})
	if err != nil {
		return domain.Settlement{}, err
	}

	e.log.Info(ctx, "market settled",
		"market_id", marketID,
		"outcome", outcome.String(),
		"liability", out.Liability.Dec(),
		"surplus", out.Surplus.Dec(),
		"deficit", out.Deficit.Dec(),
		"rate", out.Rate.Dec(),
	)
	return out, nil
}

// harvest books vault yield above the pool's accounted collateral as fees.
func (e *Engine) harvest(tx *txn) error {
	pool := &tx.st.pool
	if e.vault == nil || pool.VaultShares.IsZero() {
		return nil
	}

	assets, err := e.vault.ConvertToAssets(tx.ctx, tx.st.market.Collateral, &pool.VaultShares)
	if err != nil {
		// yield stays in the vault; settlement does not depend on it
		e.log.Warn(tx.ctx, "vault valuation failed, skipping harvest", "market_id", pool.MarketID, "error", err)
		return nil
	}

	held := new(uint256.Int).Add(assets, &pool.Idle)
	accounted, err := pool.Value()
	if err != nil {
		return err
	}
	if !held.Gt(accounted) {
		return nil
	}

	yield := new(uint256.Int).Sub(held, accounted)
	if err := addTo(&pool.TotalFee, yield); err != nil {
		return err
	}
	e.log.Info(tx.ctx, "vault yield harvested", "market_id", pool.MarketID, "yield", yield.Dec())
	return nil
}

// Redeem burns the caller's outcome shares at the settlement rate.
func (e *Engine) Redeem(ctx context.Context, account common.Address, marketID uint64) (domain.RedeemQuote, error) {
	var out domain.RedeemQuote
	err := e.transact(ctx, "redeem", marketID, account, func(tx *txn) error {
		q, err := tx.st.pool.QuoteRedeem(tx.pos)
		if err != nil {
			return err
		}
		if err := tx.st.pool.ApplyRedeem(tx.pos, q); err != nil {
			return err
		}

		if err := e.payOut(tx, q.Payout); err != nil {
			return err
		}

		ev := domain.NewEvent(domain.EventRedeem, &tx.st.pool, account, e.clock.Now())
		ev.Outcome = tx.st.pool.Outcome
		ev.Collateral.Set(q.Payout)
		ev.Shares.Add(q.YesBurned, q.NoBurned)
		tx.emit(ev)

		out = q
		return nil
	})
	if err != nil {
		return domain.RedeemQuote{}, err
	}

	e.metrics.flow(ctx, "redeem", out.Payout, nil)
	e.log.Info(ctx, "shares redeemed",
		"market_id", marketID,
		"account", account.Hex(),
		"payout", out.Payout.Dec(),
	)
	return out, nil
}
