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

// BuyParams are the inputs of a buy.
type BuyParams struct {
	MarketID     uint64
	Outcome      market.Outcome
	AmountIn     *uint256.Int
	MinSharesOut *uint256.Int
}

// SellParams are the inputs of a sell.
type SellParams struct {
	MarketID         uint64
	Outcome          market.Outcome
	Shares           *uint256.Int
	MinCollateralOut *uint256.Int
}

// Buy spends AmountIn of collateral on outcome shares.
func (e *Engine) Buy(ctx context.Context, account common.Address, p BuyParams) (domain.BuyQuote, error) {
	var out domain.BuyQuote
	err := e.transact(ctx, "buy", p.MarketID, account, func(tx *txn) error {
		if err := e.checkOpen(tx.st); err != nil {
			return err
		}
		if err := e.checkDeposit(ctx, tx.st, p.AmountIn); err != nil {
			return err
		}

		q, err := tx.st.pool.QuoteBuy(p.Outcome, p.AmountIn)
		if err != nil {
			return err
		}
		if q.Shares.Lt(orZero(p.MinSharesOut)) {
			return apperror.New(apperror.CodeSlippageExceeded,
				apperror.WithContext(fmt.Sprintf("shares out %s below minimum %s", q.Shares.Dec(), orZero(p.MinSharesOut).Dec())))
		}

		if err := tx.st.pool.ApplyBuy(q); err != nil {
			return err
		}
		if err := addTo(tx.pos.Balance(p.Outcome), q.Shares); err != nil {
			return err
		}

		if err := e.pullIn(tx, q.AmountIn); err != nil {
			return err
		}

		ev := domain.NewEvent(domain.EventBuy, &tx.st.pool, account, e.clock.Now())
		ev.Outcome = p.Outcome
		ev.Collateral.Set(q.AmountIn)
		ev.Shares.Set(q.Shares)
		ev.Fee.Set(q.Fee)
		tx.emit(ev)

		out = q
		return nil
	})
	if err != nil {
		return domain.BuyQuote{}, err
	}

	e.metrics.flow(ctx, "buy", out.AmountIn, out.Fee)
	e.log.Info(ctx, "buy",
		"market_id", p.MarketID,
		"account", account.Hex(),
		"outcome", p.Outcome.String(),
		"amount_in", out.AmountIn.Dec(),
		"shares", out.Shares.Dec(),
	)
	return out, nil
}

// Sell returns outcome shares to the pool for collateral.
func (e *Engine) Sell(ctx context.Context, account common.Address, p SellParams) (domain.SellQuote, error) {
	var out domain.SellQuote
	err := e.transact(ctx, "sell", p.MarketID, account, func(tx *txn) error {
		if err := e.checkOpen(tx.st); err != nil {
			return err
		}
		if !p.Outcome.IsSide() {
			return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("outcome must be yes or no"))
		}
		if p.Shares == nil || p.Shares.IsZero() {
			return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("shares must be positive"))
		}

		balance := tx.pos.Balance(p.Outcome)
		if p.Shares.Gt(balance) {
			return apperror.New(apperror.CodeInsufficientBalance,
				apperror.WithContext(fmt.Sprintf("holding %s %s shares", balance.Dec(), p.Outcome)))
		}

		q, err := tx.st.pool.QuoteSell(p.Outcome, p.Shares)
		if err != nil {
			return err
		}
		if q.Payout.Lt(orZero(p.MinCollateralOut)) {
			return apperror.New(apperror.CodeSlippageExceeded,
				apperror.WithContext(fmt.Sprintf("collateral out %s below minimum %s", q.Payout.Dec(), orZero(p.MinCollateralOut).Dec())))
		}

		if err := tx.st.pool.ApplySell(q); err != nil {
			return err
		}
		balance.Sub(balance, q.Shares)

		if err := e.payOut(tx, q.Payout); err != nil {
			return err
		}

		ev := domain.NewEvent(domain.EventSell, &tx.st.pool, account, e.clock.Now())
		ev.Outcome = p.Outcome
		ev.Collateral.Set(q.Payout)
		ev.Shares.Set(q.Shares)
		ev.Fee.Set(q.Fee)
		tx.emit(ev)

		out = q
		return nil
	})
	if err != nil {
		return domain.SellQuote{}, err
	}

	e.metrics.flow(ctx, "sell", out.Gross, out.Fee)
	e.log.Info(ctx, "sell",
		"market_id", p.MarketID,
		"account", account.Hex(),
		"outcome", p.Outcome.String(),
		"shares", out.Shares.Dec(),
		"payout", out.Payout.Dec(),
	)
	return out, nil
}

// QuoteBuy prices a buy without executing it.
func (e *Engine) QuoteBuy(ctx context.Context, marketID uint64, outcome market.Outcome, amountIn *uint256.Int) (domain.BuyQuote, error) {
	var q domain.BuyQuote
	err := e.read(marketID, func(st *marketState) error {
		if err := e.checkOpen(st); err != nil {
			return err
		}
		var err error
		q, err = st.pool.QuoteBuy(outcome, amountIn)
		return err
	})
	return q, err
}

// QuoteSell prices a sell without executing it.
func (e *Engine) QuoteSell(ctx context.Context, marketID uint64, outcome market.Outcome, shares *uint256.Int) (domain.SellQuote, error) {
	var q domain.SellQuote
	err := e.read(marketID, func(st *marketState) error {
		if err := e.checkOpen(st); err != nil {
			return err
		}
		var err error
		q, err = st.pool.QuoteSell(outcome, shares)
		return err
	})
	return q, err
}
