// Package app contains the AMM engine and the ports it drives.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
)

// MarketDirectory is the engine's view of the market registry.
type MarketDirectory interface {
	Market(ctx context.Context, id uint64) (market.Market, error)
	TokenInfo(ctx context.Context, token common.Address) (market.TokenInfo, error)
	MarkResolved(ctx context.Context, id uint64, outcome market.Outcome) error
}

// TokenLedger moves collateral between accounts.
type TokenLedger interface {
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, token, holder common.Address) (*uint256.Int, error)
}

// CollateralVault earns yield on idle collateral held by the engine escrow.
type CollateralVault interface {
	// Deposit moves amount from the escrow into the vault and mints shares.
	Deposit(ctx context.Context, token common.Address, amount *uint256.Int) (*uint256.Int, error)
	// Withdraw returns exactly amount to the escrow, burning at most maxShares.
	// It changes nothing when it fails.
	Withdraw(ctx context.Context, token common.Address, amount, maxShares *uint256.Int) (*uint256.Int, error)
	// ConvertToAssets values shares at the current rate.
	ConvertToAssets(ctx context.Context, token common.Address, shares *uint256.Int) (*uint256.Int, error)
}

// EventJournal is the append-only record of committed calls.
type EventJournal interface {
	Append(ctx context.Context, e domain.Event) error
	List(ctx context.Context, marketID uint64, limit int) ([]domain.Event, error)
}

// EventPublisher fans committed events out to subscribers.
// Implementations must not block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// PriceCache publishes the latest prices of a market.
type PriceCache interface {
	SetPrices(ctx context.Context, marketID uint64, yes, no *uint256.Int, at time.Time) error
}
