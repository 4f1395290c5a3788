// Package domain contains the optimistic oracle proposal lifecycle.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
)

// State is the stage of a resolution proposal.
type State uint8

const (
	Proposed  State = 1 // waiting out the liveness window
	Disputed  State = 2 // escalated to admin arbitration
	Settled   State = 3 // arbitrated by the admin
	Finalized State = 4 // undisputed and past liveness
)

// String returns the lowercase name.
func (s State) String() string {
	switch s {
	case Proposed:
		return "proposed"
	case Disputed:
		return "disputed"
	case Settled:
		return "settled"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Closed reports whether the proposal has produced a resolution.
func (s State) Closed() bool {
	return s == Settled || s == Finalized
}

// Proposal is an asserted outcome of a market backed by a bond.
type Proposal struct {
	MarketID   uint64
	Token      common.Address
	Proposer   common.Address
	Outcome    market.Outcome
	Bond       uint256.Int
	ProposedAt time.Time
	Deadline   time.Time
	Disputer   common.Address
	DisputedAt time.Time
	State      State
	Resolution market.Outcome // set once closed
}

// NewProposal opens a proposal whose liveness window starts at now.
func NewProposal(m market.Market, proposer common.Address, outcome market.Outcome, bond *uint256.Int, now time.Time, liveness time.Duration) Proposal {
	p := Proposal{
		MarketID:   m.ID,
		Token:      m.Collateral,
		Proposer:   proposer,
		Outcome:    outcome,
		ProposedAt: now,
		Deadline:   now.Add(liveness),
		State:      Proposed,
	}
	p.Bond.Set(bond)
	return p
}

// Disputable reports whether a dispute is accepted at now.
func (p *Proposal) Disputable(now time.Time) bool {
	return p.State == Proposed && now.Before(p.Deadline)
}

// Finalizable reports whether the proposal can be accepted as is at now.
func (p *Proposal) Finalizable(now time.Time) bool {
	return p.State == Proposed && !now.Before(p.Deadline)
}

// Winner returns who collects both bonds when the admin rules outcome.
// The proposer wins when the ruling matches the proposal.
func (p *Proposal) Winner(ruling market.Outcome) common.Address {
	if ruling == p.Outcome {
		return p.Proposer
	}
	return p.Disputer
}
