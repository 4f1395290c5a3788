// Package app contains the optimistic oracle service and its ports.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
)

// MarketDirectory is the oracle's view of the market registry.
type MarketDirectory interface {
	Market(ctx context.Context, id uint64) (market.Market, error)
	IsAdmin(account common.Address) bool
}

// BondLedger holds proposal and dispute bonds.
type BondLedger interface {
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
}

// Resolver applies a final outcome to a market.
type Resolver interface {
	Resolve(ctx context.Context, marketID uint64, outcome market.Outcome) error
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, marketID uint64, outcome market.Outcome) error

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, marketID uint64, outcome market.Outcome) error {
	return f(ctx, marketID, outcome)
}
