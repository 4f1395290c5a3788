package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Decimals is the fixed-point precision of every ledger quantity:
// collateral, outcome shares, LP shares and prices.
const Decimals = 18

// Token is the metadata of a collateral token.
// The address is identity; symbol and name are display only.
type Token struct {
	address common.Address
	symbol  string
	name    string
}

// NewToken creates a token.
func NewToken(address common.Address, symbol string) *Token {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	return &Token{address: address, symbol: symbol}
}

// NewTokenWithName creates a token with a human-readable name.
func NewTokenWithName(address common.Address, symbol, name string) *Token {
	t := NewToken(address, symbol)
	t.name = name
	return t
}

// Address returns the token address.
func (t *Token) Address() common.Address {
	return t.address
}

// Symbol returns the ticker symbol (e.g., "USDC").
func (t *Token) Symbol() string {
	return t.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (t *Token) Name() string {
	if t.name == "" {
		return t.symbol
	}
	return t.name
}

// String returns "USDC (0x…)".
func (t *Token) String() string {
	return fmt.Sprintf("%s (%s)", t.symbol, t.address.Hex())
}
