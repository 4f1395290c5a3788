// Package memory provides in-process collaborators of the engine.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/internal/apperror"
)

// Ledger is an ERC-20-like balance book keyed by token and holder.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int
	supply   map[common.Address]*uint256.Int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:   make(map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) balance(token, holder common.Address) *uint256.Int {
	book, ok := l.balances[token]
	if !ok {
		book = make(map[common.Address]*uint256.Int)
		l.balances[token] = book
	}
	b, ok := book[holder]
	if !ok {
		b = new(uint256.Int)
		book[holder] = b
	}
	return b
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(_ context.Context, token, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balance(token, from)
	if src.Lt(amount) {
		return apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext(fmt.Sprintf("%s holds %s of %s, needs %s", from.Hex(), src.Dec(), token.Hex(), amount.Dec())))
	}
	dst := l.balance(token, to)
	if _, overflow := new(uint256.Int).AddOverflow(dst, amount); overflow {
		return apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("ledger balance"))
	}

	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

// Mint creates amount of token for holder.
func (l *Ledger) Mint(_ context.Context, token, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, ok := l.supply[token]
	if !ok {
		supply = new(uint256.Int)
		l.supply[token] = supply
	}
	if _, overflow := new(uint256.Int).AddOverflow(supply, amount); overflow {
		return apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("token supply"))
	}

	supply.Add(supply, amount)
	b := l.balance(token, to)
	b.Add(b, amount)
	return nil
}

// BalanceOf returns the balance of holder.
func (l *Ledger) BalanceOf(_ context.Context, token, holder common.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if book, ok := l.balances[token]; ok {
		if b, ok := book[holder]; ok {
			return new(uint256.Int).Set(b), nil
		}
	}
	return new(uint256.Int), nil
}

// TotalSupply returns everything ever minted of token.
func (l *Ledger) TotalSupply(token common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s, ok := l.supply[token]; ok {
		return new(uint256.Int).Set(s)
	}
	return new(uint256.Int)
}
