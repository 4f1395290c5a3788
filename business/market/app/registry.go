package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/logger"
)

const createLockTTL = 10 * time.Second

// Options configures a Registry.
type Options struct {
	FeeBps uint64
	Admin  common.Address
}

// Registry owns market identity and the collateral allow-list.
type Registry struct {
	opts   Options
	assets *asset.Registry
	clock  clock.Clock
	locker Locker
	log    logger.LoggerInterface

	mu        sync.RWMutex
	markets   map[uint64]*domain.Market
	tokens    map[common.Address]domain.TokenInfo
	nextID    uint64
	listeners []CreationListener
}

// NewRegistry creates an empty registry. locker may be nil for a single replica.
func NewRegistry(opts Options, assets *asset.Registry, clk clock.Clock, locker Locker, log logger.LoggerInterface) (*Registry, error) {
	if opts.FeeBps > domain.MaxFeeBps {
		return nil, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext(fmt.Sprintf("fee %d bps exceeds %d", opts.FeeBps, domain.MaxFeeBps)))
	}
	if assets == nil {
		assets = asset.NewRegistry()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Registry{
		opts:    opts,
		assets:  assets,
		clock:   clk,
		locker:  locker,
		log:     log.With("component", "market_registry"),
		markets: make(map[uint64]*domain.Market),
		tokens:  make(map[common.Address]domain.TokenInfo),
		nextID:  1,
	}, nil
}

// Subscribe registers a listener for market creation.
func (r *Registry) Subscribe(l CreationListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Admin returns the admin account.
func (r *Registry) Admin() common.Address {
	return r.opts.Admin
}

// IsAdmin reports whether account may call admin operations.
func (r *Registry) IsAdmin(account common.Address) bool {
	return account == r.opts.Admin
}

// CreateMarket validates p, registers the market and notifies listeners.
// A zero MarketID assigns the next free id.
func (r *Registry) CreateMarket(ctx context.Context, creator common.Address, p domain.CreateParams) (domain.Market, error) {
	if p.Period <= 0 {
		return domain.Market{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("period must be positive"))
	}
	if p.VirtualLiquidity == nil || p.VirtualLiquidity.IsZero() {
		return domain.Market{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("virtual liquidity must be positive"))
	}
	if p.Quest == "" {
		return domain.Market{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("quest is required"))
	}
	if info, ok := r.lookupToken(p.Collateral); !ok || !info.Enabled {
		return domain.Market{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext(fmt.Sprintf("collateral %s is not enabled", p.Collateral.Hex())))
	}

	if r.locker != nil {
		unlock, err := r.locker.Acquire(ctx, "markets:create", createLockTTL)
		if err != nil {
			return domain.Market{}, apperror.New(apperror.CodeServiceUnavailable,
				apperror.WithContext("market creation lock"), apperror.WithCause(err))
		}
		defer unlock()
	}

	now := r.clock.Now()
	m, err := r.insert(creator, p, now)
	if err != nil {
		return domain.Market{}, err
	}

	for _, l := range r.snapshotListeners() {
		if err := l.OnMarketCreated(ctx, m); err != nil {
			r.remove(m.ID)
			r.log.Warn(ctx, "market creation rolled back", "market_id", m.ID, "error", err)
			return domain.Market{}, err
		}
	}

	r.log.Info(ctx, "market created",
		"market_id", m.ID,
		"creator", creator.Hex(),
		"collateral", m.Collateral.Hex(),
		"fee_bps", m.FeeBps,
		"end_time", m.EndTime,
	)
	return m, nil
}

func (r *Registry) insert(creator common.Address, p domain.CreateParams, now time.Time) (domain.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.MarketID
	if id == 0 {
		id = r.nextID
		for r.markets[id] != nil {
			id++
		}
	}
	if _, exists := r.markets[id]; exists {
		return domain.Market{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext(fmt.Sprintf("market %d already exists", id)),
			apperror.WithStatusCode(http.StatusConflict))
	}

	m := &domain.Market{
		ID:         id,
		Creator:    creator,
		Collateral: p.Collateral,
		Quest:      p.Quest,
		FeeBps:     r.opts.FeeBps,
		CreatedAt:  now,
		EndTime:    now.Add(p.Period),
		Outcome:    domain.Unresolved,
	}
	m.VirtualLiquidity.Set(p.VirtualLiquidity)

	r.markets[id] = m
	if id >= r.nextID {
		r.nextID = id + 1
	}
	return *m, nil
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markets, id)
}

func (r *Registry) snapshotListeners() []CreationListener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CreationListener(nil), r.listeners...)
}

// Market returns the market with id.
func (r *Registry) Market(_ context.Context, id uint64) (domain.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.markets[id]
	if !ok {
		return domain.Market{}, apperror.NotFound(apperror.CodeMarketNotFound, fmt.Sprintf("market %d", id))
	}
	return *m, nil
}

// List returns all markets ordered by id.
func (r *Registry) List(_ context.Context) []domain.Market {
	r.mu.RLock()
	out := make([]domain.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, *m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkResolved sets the terminal outcome of a market. It can only happen once.
func (r *Registry) MarkResolved(ctx context.Context, id uint64, outcome domain.Outcome) error {
	if !outcome.IsTerminal() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("%s is not a terminal outcome", outcome)))
	}

	r.mu.Lock()
	m, ok := r.markets[id]
	if !ok {
		r.mu.Unlock()
		return apperror.NotFound(apperror.CodeMarketNotFound, fmt.Sprintf("market %d", id))
	}
	if m.Resolved() {
		r.mu.Unlock()
		return apperror.New(apperror.CodeAlreadyResolved,
			apperror.WithContext(fmt.Sprintf("market %d resolved %s", id, m.Outcome)))
	}
	m.Outcome = outcome
	r.mu.Unlock()

	r.log.Info(ctx, "market resolved", "market_id", id, "outcome", outcome.String())
	return nil
}

// SetTokenInfo updates the collateral allow-list. Admin only.
func (r *Registry) SetTokenInfo(ctx context.Context, caller, token common.Address, enabled bool, minCollateral *uint256.Int) (domain.TokenInfo, error) {
	if !r.IsAdmin(caller) {
		return domain.TokenInfo{}, apperror.New(apperror.CodeUnauthorized,
			apperror.WithContext("setTokenInfo is admin only"))
	}
	if token == (common.Address{}) {
		return domain.TokenInfo{}, apperror.New(apperror.CodeInvalidConfig,
			apperror.WithContext("token address is required"))
	}

	t, ok := r.assets.Get(token)
	if !ok {
		t = r.assets.Ensure(token, "TKN-"+token.Hex()[2:8])
	}

	info := domain.TokenInfo{Token: token, Symbol: t.Symbol(), Enabled: enabled}
	if minCollateral != nil {
		info.MinCollateral.Set(minCollateral)
	}

	r.mu.Lock()
	r.tokens[token] = info
	r.mu.Unlock()

	r.log.Info(ctx, "token info updated",
		"token", token.Hex(),
		"symbol", info.Symbol,
		"enabled", enabled,
		"min_collateral", asset.FormatUnits(&info.MinCollateral, 2),
	)
	return info, nil
}

// TokenInfo returns the allow-list entry of token. Unknown tokens are
// reported as TOKEN_NOT_ENABLED.
func (r *Registry) TokenInfo(_ context.Context, token common.Address) (domain.TokenInfo, error) {
	info, ok := r.lookupToken(token)
	if !ok {
		return domain.TokenInfo{}, apperror.New(apperror.CodeTokenNotEnabled,
			apperror.WithContext(token.Hex()))
	}
	return info, nil
}

// Tokens returns the allow-list ordered by symbol.
func (r *Registry) Tokens(_ context.Context) []domain.TokenInfo {
	r.mu.RLock()
	out := make([]domain.TokenInfo, 0, len(r.tokens))
	for _, info := range r.tokens {
		out = append(out, info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Token returns the asset metadata of a collateral token.
func (r *Registry) Token(address common.Address) (*asset.Token, bool) {
	return r.assets.Get(address)
}

func (r *Registry) lookupToken(token common.Address) (domain.TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tokens[token]
	return info, ok
}
