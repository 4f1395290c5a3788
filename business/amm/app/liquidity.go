package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
)

// AddLiquidityParams are the inputs of a liquidity deposit.
type AddLiquidityParams struct {
	MarketID uint64
	Amount   *uint256.Int
	MinLPOut *uint256.Int
}

// AddLiquidity deposits collateral and mints LP shares. It never moves the price.
func (e *Engine) AddLiquidity(ctx context.Context, account common.Address, p AddLiquidityParams) (domain.AddQuote, error) {
	var out domain.AddQuote
	err := e.transact(ctx, "add_liquidity", p.MarketID, account, func(tx *txn) error {
		if err := e.checkOpen(tx.st); err != nil {
			return err
		}
		if err := e.checkDeposit(ctx, tx.st, p.Amount); err != nil {
			return err
		}

		q, err := tx.st.pool.QuoteAdd(p.Amount)
		if err != nil {
			return err
		}
		if q.LPMinted.Lt(orZero(p.MinLPOut)) {
			return apperror.New(apperror.CodeSlippageExceeded,
				apperror.WithContext(fmt.Sprintf("lp out %s below minimum %s", q.LPMinted.Dec(), orZero(p.MinLPOut).Dec())))
		}

		if err := tx.st.pool.ApplyAdd(q); err != nil {
			return err
		}
		if err := addTo(&tx.pos.LP, q.LPMinted); err != nil {
			return err
		}

		if err := e.pullIn(tx, q.Amount); err != nil {
			return err
		}

		ev := domain.NewEvent(domain.EventAddLiquidity, &tx.st.pool, account, e.clock.Now())
		ev.Collateral.Set(q.Amount)
		ev.Shares.Set(q.LPMinted)
		tx.emit(ev)

		out = q
		return nil
	})
	if err != nil {
		return domain.AddQuote{}, err
	}

	e.metrics.flow(ctx, "add_liquidity", out.Amount, nil)
	e.log.Info(ctx, "liquidity added",
		"market_id", p.MarketID,
		"account", account.Hex(),
		"amount", out.Amount.Dec(),
		"lp", out.LPMinted.Dec(),
	)
	return out, nil
}

// RemoveLiquidity burns LP shares and pays out the principal and fee share.
// It stays available after expiry and resolution.
//
// Before resolution LPs may withdraw all of their principal. Outstanding
// shares then keep only the trade collateral behind them, and settlement
// cuts the redemption rate pro rata if that falls short of the winners.
func (e *Engine) RemoveLiquidity(ctx context.Context, account common.Address, marketID uint64, lp *uint256.Int) (domain.RemovalQuote, error) {
	var out domain.RemovalQuote
	err := e.transact(ctx, "remove_liquidity", marketID, account, func(tx *txn) error {
		if lp == nil || lp.IsZero() {
			return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("lp amount must be positive"))
		}
		if lp.Gt(&tx.pos.LP) {
			return apperror.New(apperror.CodeInsufficientBalance,
				apperror.WithContext(fmt.Sprintf("holding %s lp", tx.pos.LP.Dec())))
		}

		q, err := tx.st.pool.QuoteRemove(lp)
		if err != nil {
			return err
		}
		if err := tx.st.pool.ApplyRemove(q); err != nil {
			return err
		}
		tx.pos.LP.Sub(&tx.pos.LP, q.LP)

		if err := e.payOut(tx, q.TotalValue); err != nil {
			return err
		}

		ev := domain.NewEvent(domain.EventRemoveLiquidity, &tx.st.pool, account, e.clock.Now())
		ev.Collateral.Set(q.TotalValue)
		ev.Shares.Set(q.LP)
		ev.Fee.Set(q.FeeShare)
		tx.emit(ev)

		out = q
		return nil
	})
	if err != nil {
		return domain.RemovalQuote{}, err
	}

	e.metrics.flow(ctx, "remove_liquidity", out.TotalValue, nil)
	e.log.Info(ctx, "liquidity removed",
		"market_id", marketID,
		"account", account.Hex(),
		"lp", out.LP.Dec(),
		"fee_share", out.FeeShare.Dec(),
		"total_value", out.TotalValue.Dec(),
	)
	return out, nil
}

// EstimateLiquidityRemoval returns what RemoveLiquidity(lp) would pay right now.
func (e *Engine) EstimateLiquidityRemoval(_ context.Context, marketID uint64, lp *uint256.Int) (domain.RemovalQuote, error) {
	var q domain.RemovalQuote
	err := e.read(marketID, func(st *marketState) error {
		var err error
		q, err = st.pool.QuoteRemove(lp)
		return err
	})
	return q, err
}
