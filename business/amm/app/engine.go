package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apm"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/logger"
)

// DefaultEscrow is the ledger account that holds pool collateral.
var DefaultEscrow = common.HexToAddress("0x000000000000000000000000000000000000a11c")

// Deps are the engine's collaborators. Vault, Journal, Publisher and
// Prices are optional.
type Deps struct {
	Markets   MarketDirectory
	Ledger    TokenLedger
	Vault     CollateralVault
	Journal   EventJournal
	Publisher EventPublisher
	Prices    PriceCache
	Clock     clock.Clock
	Logger    logger.LoggerInterface
}

// Engine runs every pool call as one atomic unit per market.
//
// A call holds its market's mutex from the first check to the last
// interaction. The pool and the caller's position are snapshotted on entry
// and restored if any step fails, so a failed call leaves no trace.
type Engine struct {
	markets   MarketDirectory
	ledger    TokenLedger
	vault     CollateralVault
	journal   EventJournal
	publisher EventPublisher
	prices    PriceCache
	clock     clock.Clock
	log       logger.LoggerInterface
	tracer    apm.Tracer
	metrics   *engineMetrics
	escrow    common.Address

	mu     sync.RWMutex
	states map[uint64]*marketState
}

type marketState struct {
	mu        sync.Mutex
	market    market.Market
	pool      domain.Pool
	positions map[common.Address]*domain.Position
}

// NewEngine creates an engine. A zero escrow selects DefaultEscrow.
func NewEngine(deps Deps, escrow common.Address) (*Engine, error) {
	if deps.Markets == nil || deps.Ledger == nil {
		return nil, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("engine requires a market directory and a token ledger"))
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if escrow == (common.Address{}) {
		escrow = DefaultEscrow
	}

	return &Engine{
		markets:   deps.Markets,
		ledger:    deps.Ledger,
		vault:     deps.Vault,
		journal:   deps.Journal,
		publisher: deps.Publisher,
		prices:    deps.Prices,
		clock:     deps.Clock,
		log:       deps.Logger.With("component", "amm_engine"),
		tracer:    apm.NewTracer(instrumentationName),
		metrics:   newEngineMetrics(),
		escrow:    escrow,
		states:    make(map[uint64]*marketState),
	}, nil
}

// Escrow returns the ledger account holding pool collateral.
func (e *Engine) Escrow() common.Address {
	return e.escrow
}

// OnMarketCreated initialises the pool of a new market.
func (e *Engine) OnMarketCreated(ctx context.Context, m market.Market) error {
	pool, err := domain.NewPool(m.ID, &m.VirtualLiquidity, m.FeeBps)
	if err != nil {
		return err
	}

	st := &marketState{
		market:    m,
		pool:      pool,
		positions: make(map[common.Address]*domain.Position),
	}

	e.mu.Lock()
	if _, exists := e.states[m.ID]; exists {
		e.mu.Unlock()
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("pool %d already exists", m.ID)))
	}
	e.states[m.ID] = st
	e.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	e.emit(ctx, st, domain.NewEvent(domain.EventPoolCreated, &st.pool, m.Creator, e.clock.Now()))

	e.log.Info(ctx, "pool created",
		"market_id", m.ID,
		"virtual_liquidity", m.VirtualLiquidity.Dec(),
		"fee_bps", m.FeeBps,
	)
	return nil
}

func (e *Engine) state(id uint64) (*marketState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.states[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeMarketNotFound, fmt.Sprintf("market %d", id))
	}
	return st, nil
}

// txn is the working set of one mutating call.
type txn struct {
	ctx     context.Context
	st      *marketState
	account common.Address
	pos     *domain.Position // nil for calls without a caller position
	undo    []func()
	events  []domain.Event
}

func (tx *txn) emit(ev domain.Event) {
	tx.events = append(tx.events, ev)
}

// transact runs fn under the market lock. A zero account runs without a
// caller position.
func (e *Engine) transact(ctx context.Context, op string, id uint64, account common.Address, fn func(tx *txn) error) (err error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "amm."+op)
	span.SetAttributes(
		attribute.Int64("market.id", int64(id)),
		attribute.String("account", account.Hex()),
	)
	defer func() {
		if err != nil {
			span.NoticeError(err)
			e.log.Debug(ctx, "call rejected", "op", op, "market_id", id, "error", err)
		}
		e.metrics.record(ctx, op, err)
		span.End()
	}()

	st, err := e.state(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	snapshot := st.pool
	tx := &txn{ctx: ctx, st: st, account: account}

	var (
		saved   domain.Position
		existed bool
	)
	if account != (common.Address{}) {
		tx.pos, existed = st.positions[account]
		if existed {
			saved = *tx.pos
		} else {
			tx.pos = new(domain.Position)
			st.positions[account] = tx.pos
		}
	}

	if err := fn(tx); err != nil {
		st.pool = snapshot
		if tx.pos != nil {
			if existed {
				*tx.pos = saved
			} else {
				delete(st.positions, account)
			}
		}
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}

	for _, ev := range tx.events {
		e.emit(ctx, st, ev)
	}
	return nil
}

// checkOpen rejects trading and liquidity adds on expired or resolved markets.
func (e *Engine) checkOpen(st *marketState) error {
	if st.pool.Settled() {
		return apperror.New(apperror.CodeAlreadyResolved,
			apperror.WithContext(fmt.Sprintf("market %d resolved %s", st.market.ID, st.pool.Outcome)))
	}
	if st.market.Expired(e.clock.Now()) {
		return apperror.New(apperror.CodeMarketExpired,
			apperror.WithContext(fmt.Sprintf("market %d ended at %s", st.market.ID, st.market.EndTime)))
	}
	return nil
}

// checkDeposit enforces the collateral allow-list and minimum deposit.
func (e *Engine) checkDeposit(ctx context.Context, st *marketState, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("amount must be positive"))
	}
	info, err := e.markets.TokenInfo(ctx, st.market.Collateral)
	if err != nil {
		return err
	}
	if !info.Enabled {
		return apperror.New(apperror.CodeTokenNotEnabled, apperror.WithContext(info.Symbol))
	}
	if amount.Lt(&info.MinCollateral) {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("amount below minimum collateral %s", info.MinCollateral.Dec())))
	}
	return nil
}

// pullIn moves amount from the caller into the escrow and parks it.
// It must be the last fallible step of a call.
func (e *Engine) pullIn(tx *txn, amount *uint256.Int) error {
	if err := e.ledger.Transfer(tx.ctx, tx.st.market.Collateral, tx.account, e.escrow, amount); err != nil {
		return err
	}
	e.park(tx.ctx, tx.st, amount)
	return nil
}

// park deposits amount into the vault, or keeps it idle if there is no
// vault or the vault refuses it.
func (e *Engine) park(ctx context.Context, st *marketState, amount *uint256.Int) {
	if e.vault != nil {
		shares, err := e.vault.Deposit(ctx, st.market.Collateral, amount)
		if err == nil {
			st.pool.VaultShares.Add(&st.pool.VaultShares, shares)
			return
		}
		e.log.Warn(ctx, "vault deposit failed, keeping collateral idle",
			"market_id", st.market.ID, "amount", amount.Dec(), "error", err)
	}
	st.pool.Idle.Add(&st.pool.Idle, amount)
}

// payOut sends amount to the caller, drawing idle collateral first and the
// vault for the rest.
func (e *Engine) payOut(tx *txn, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	st := tx.st
	token := st.market.Collateral

	fromIdle := amount
	if st.pool.Idle.Lt(amount) {
		fromIdle = new(uint256.Int).Set(&st.pool.Idle)
	}
	fromVault := new(uint256.Int).Sub(amount, fromIdle)

	if !fromVault.IsZero() {
		if e.vault == nil {
			return apperror.New(apperror.CodeInsufficientLiquidity,
				apperror.WithContext("escrow cannot cover payout"))
		}
		burned, err := e.vault.Withdraw(tx.ctx, token, fromVault, &st.pool.VaultShares)
		if err != nil {
			return err
		}
		st.pool.VaultShares.Sub(&st.pool.VaultShares, burned)
		tx.undo = append(tx.undo, func() {
			ctx := context.WithoutCancel(tx.ctx)
			// runs after the snapshot is restored, which still counts the burned shares
			st.pool.VaultShares.Sub(&st.pool.VaultShares, burned)
			e.park(ctx, st, fromVault)
		})
	}
	st.pool.Idle.Sub(&st.pool.Idle, fromIdle)

	return e.ledger.Transfer(tx.ctx, token, e.escrow, tx.account, amount)
}

// emit journals and publishes a committed event. Sinks never fail a call.
func (e *Engine) emit(ctx context.Context, st *marketState, ev domain.Event) {
	ctx = context.WithoutCancel(ctx)

	if e.journal != nil {
		if err := e.journal.Append(ctx, ev); err != nil {
			e.metrics.sinkError(ctx, "journal")
			e.log.Error(ctx, "journal append failed", "event_id", ev.ID.String(), "error", err)
		}
	}
	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.metrics.sinkError(ctx, "publish")
			e.log.Warn(ctx, "event publish failed", "event_id", ev.ID.String(), "error", err)
		}
	}
	if e.prices != nil {
		if err := e.prices.SetPrices(ctx, ev.MarketID, &ev.PriceYes, &ev.PriceNo, ev.Timestamp); err != nil {
			e.metrics.sinkError(ctx, "prices")
			e.log.Warn(ctx, "price cache update failed", "market_id", ev.MarketID, "error", err)
		}
	}
	e.metrics.price(ctx, st.market.ID, &ev.PriceYes)
}

func addTo(dst *uint256.Int, v *uint256.Int) error {
	if _, overflow := dst.AddOverflow(dst, v); overflow {
		dst.Sub(dst, v)
		return apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("balance"))
	}
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
