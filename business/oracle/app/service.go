package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/business/oracle/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/logger"
)

// DefaultBondEscrow is the ledger account that holds bonds.
var DefaultBondEscrow = common.HexToAddress("0x000000000000000000000000000000000000b0d0")

// Options configures a Service.
type Options struct {
	Liveness time.Duration
	MinBond  *uint256.Int
	Escrow   common.Address // zero selects DefaultBondEscrow
}

// Service runs the optimistic resolution workflow: a bonded proposal is
// accepted after the liveness window unless someone posts a matching bond
// to dispute it, in which case the admin rules.
type Service struct {
	opts     Options
	markets  MarketDirectory
	ledger   BondLedger
	resolver Resolver
	clock    clock.Clock
	log      logger.LoggerInterface

	mu        sync.Mutex
	proposals map[uint64]*domain.Proposal
}

// NewService creates an oracle service.
func NewService(opts Options, markets MarketDirectory, ledger BondLedger, resolver Resolver, clk clock.Clock, log logger.LoggerInterface) (*Service, error) {
	if markets == nil || ledger == nil || resolver == nil {
		return nil, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("oracle requires markets, a ledger and a resolver"))
	}
	if opts.Liveness <= 0 {
		return nil, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("liveness must be positive"))
	}
	if opts.MinBond == nil {
		opts.MinBond = new(uint256.Int)
	}
	if opts.Escrow == (common.Address{}) {
		opts.Escrow = DefaultBondEscrow
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Service{
		opts:      opts,
		markets:   markets,
		ledger:    ledger,
		resolver:  resolver,
		clock:     clk,
		log:       log.With("component", "oracle"),
		proposals: make(map[uint64]*domain.Proposal),
	}, nil
}

// Liveness returns the dispute window.
func (s *Service) Liveness() time.Duration {
	return s.opts.Liveness
}

// MinBond returns the smallest accepted proposal bond.
func (s *Service) MinBond() *uint256.Int {
	return new(uint256.Int).Set(s.opts.MinBond)
}

// Propose asserts the outcome of an expired market and locks the bond.
func (s *Service) Propose(ctx context.Context, proposer common.Address, marketID uint64, outcome market.Outcome, bond *uint256.Int) (domain.Proposal, error) {
	if !outcome.IsTerminal() {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("outcome must be yes, no or invalid"))
	}
	if bond == nil || bond.IsZero() || bond.Lt(s.opts.MinBond) {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("bond below minimum %s", asset.FormatUnits(s.opts.MinBond, 2))))
	}

	m, err := s.markets.Market(ctx, marketID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if m.Resolved() {
		return domain.Proposal{}, apperror.New(apperror.CodeAlreadyResolved,
			apperror.WithContext(fmt.Sprintf("market %d resolved %s", marketID, m.Outcome)))
	}
	now := s.clock.Now()
	if !m.Expired(now) {
		return domain.Proposal{}, apperror.New(apperror.CodeMarketNotExpired,
			apperror.WithContext(fmt.Sprintf("market %d ends at %s", marketID, m.EndTime)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.proposals[marketID]; ok && !p.State.Closed() {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("market %d already has a %s proposal", marketID, p.State)))
	}

	if err := s.ledger.Transfer(ctx, m.Collateral, proposer, s.opts.Escrow, bond); err != nil {
		return domain.Proposal{}, err
	}

	p := domain.NewProposal(m, proposer, outcome, bond, now, s.opts.Liveness)
	s.proposals[marketID] = &p

	s.log.Info(ctx, "outcome proposed",
		"market_id", marketID,
		"proposer", proposer.Hex(),
		"outcome", outcome.String(),
		"bond", asset.FormatUnits(bond, 2),
		"deadline", p.Deadline,
	)
	return p, nil
}

// Dispute challenges a live proposal with an equal bond.
func (s *Service) Dispute(ctx context.Context, disputer common.Address, marketID uint64) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(marketID)
	if err != nil {
		return domain.Proposal{}, err
	}
	now := s.clock.Now()
	if !p.Disputable(now) {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("proposal for market %d is %s, deadline %s", marketID, p.State, p.Deadline)))
	}
	if disputer == p.Proposer {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("proposer cannot dispute their own proposal"))
	}

	if err := s.ledger.Transfer(ctx, p.Token, disputer, s.opts.Escrow, &p.Bond); err != nil {
		return domain.Proposal{}, err
	}

	p.Disputer = disputer
	p.DisputedAt = now
	p.State = domain.Disputed

	s.log.Warn(ctx, "proposal disputed",
		"market_id", marketID,
		"disputer", disputer.Hex(),
		"proposed", p.Outcome.String(),
	)
	return *p, nil
}

// Settle is the admin ruling on a disputed proposal. The party whose
// outcome matches the ruling collects both bonds, then the market resolves.
func (s *Service) Settle(ctx context.Context, caller common.Address, marketID uint64, ruling market.Outcome) (domain.Proposal, error) {
	if !s.markets.IsAdmin(caller) {
		return domain.Proposal{}, apperror.New(apperror.CodeUnauthorized,
			apperror.WithContext("settle is admin only"))
	}
	if !ruling.IsTerminal() {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("ruling must be yes, no or invalid"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(marketID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if p.State != domain.Disputed {
		return domain.Proposal{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("proposal for market %d is %s, not disputed", marketID, p.State)))
	}

	winner := p.Winner(ruling)
	pot := new(uint256.Int).Add(&p.Bond, &p.Bond)
	if err := s.payAndResolve(ctx, p, winner, pot, ruling); err != nil {
		return domain.Proposal{}, err
	}
	p.State = domain.Settled
	p.Resolution = ruling

	s.log.Info(ctx, "dispute settled",
		"market_id", marketID,
		"ruling", ruling.String(),
		"winner", winner.Hex(),
		"payout", asset.FormatUnits(pot, 2),
	)
	return *p, nil
}

// Finalize accepts an undisputed proposal after its liveness window,
// returns the bond and resolves the market.
func (s *Service) Finalize(ctx context.Context, marketID uint64) (market.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(marketID)
	if err != nil {
		return market.Unresolved, err
	}
	switch {
	case p.State.Closed():
		return market.Unresolved, apperror.New(apperror.CodeAlreadyResolved,
			apperror.WithContext(fmt.Sprintf("market %d resolved %s", marketID, p.Resolution)))
	case p.State == domain.Disputed:
		return market.Unresolved, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("proposal for market %d awaits arbitration", marketID)))
	case !p.Finalizable(s.clock.Now()):
		return market.Unresolved, apperror.New(apperror.CodeLivenessActive,
			apperror.WithContext(fmt.Sprintf("disputes accepted until %s", p.Deadline)))
	}

	if err := s.payAndResolve(ctx, p, p.Proposer, &p.Bond, p.Outcome); err != nil {
		return market.Unresolved, err
	}
	p.State = domain.Finalized
	p.Resolution = p.Outcome

	s.log.Info(ctx, "proposal finalized", "market_id", marketID, "outcome", p.Outcome.String())
	return p.Outcome, nil
}

// Proposal returns the current proposal of a market.
func (s *Service) Proposal(_ context.Context, marketID uint64) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(marketID)
	if err != nil {
		return domain.Proposal{}, err
	}
	return *p, nil
}

func (s *Service) lookup(marketID uint64) (*domain.Proposal, error) {
	p, ok := s.proposals[marketID]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeProposalNotFound, fmt.Sprintf("market %d", marketID))
	}
	return p, nil
}

// payAndResolve releases amount to account and resolves the market. A failed
// resolution takes the payment back, so the proposal can be retried.
func (s *Service) payAndResolve(ctx context.Context, p *domain.Proposal, account common.Address, amount *uint256.Int, outcome market.Outcome) error {
	if err := s.ledger.Transfer(ctx, p.Token, s.opts.Escrow, account, amount); err != nil {
		return err
	}
	if err := s.resolver.Resolve(ctx, p.MarketID, outcome); err != nil {
		if uerr := s.ledger.Transfer(context.WithoutCancel(ctx), p.Token, account, s.opts.Escrow, amount); uerr != nil {
			s.log.Error(ctx, "bond clawback failed", "market_id", p.MarketID, "account", account.Hex(), "error", uerr)
		}
		return err
	}
	return nil
}
