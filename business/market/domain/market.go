package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxFeeBps is the upper bound of a fee rate (100%).
const MaxFeeBps = 10_000

// Market is the registry record of a prediction market.
// Everything except Outcome is fixed at creation.
type Market struct {
	ID               uint64
	Creator          common.Address
	Collateral       common.Address
	Quest            string
	FeeBps           uint64
	VirtualLiquidity uint256.Int
	CreatedAt        time.Time
	EndTime          time.Time
	Outcome          Outcome
}

// Resolved reports whether a terminal outcome has been set.
func (m *Market) Resolved() bool {
	return m.Outcome != Unresolved
}

// Expired reports whether trading has closed at now.
func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.EndTime)
}

// TokenInfo is the admin-controlled allow-list entry for a collateral token.
type TokenInfo struct {
	Token         common.Address
	Symbol        string
	Enabled       bool
	MinCollateral uint256.Int
}

// CreateParams are the inputs of market creation.
type CreateParams struct {
	MarketID         uint64
	Period           time.Duration
	VirtualLiquidity *uint256.Int
	Quest            string
	Collateral       common.Address
}
