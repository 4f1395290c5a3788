// Package server exposes the engine, market registry and oracle over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	ammapp "github.com/fd1az/prediction-amm/business/amm/app"
	marketapp "github.com/fd1az/prediction-amm/business/market/app"
	oracleapp "github.com/fd1az/prediction-amm/business/oracle/app"
	"github.com/fd1az/prediction-amm/internal/apm"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/health"
	"github.com/fd1az/prediction-amm/internal/logger"
	"github.com/fd1az/prediction-amm/internal/ratelimit"
)

const instrumentationName = "github.com/fd1az/prediction-amm/internal/server"

// Config holds the HTTP server settings.
type Config struct {
	Port            int
	RateLimitRPM    int // zero disables limiting
	Faucet          bool
	ShutdownTimeout time.Duration

	DefaultPeriod           time.Duration
	DefaultVirtualLiquidity *uint256.Int
	DefaultCollateral       common.Address
}

// Ledger is the collateral book as seen by the faucet and balance routes.
type Ledger interface {
	BalanceOf(ctx context.Context, token, holder common.Address) (*uint256.Int, error)
	Mint(ctx context.Context, token, to common.Address, amount *uint256.Int) error
}

// Deps are the services behind the routes. Health and Metrics are optional.
type Deps struct {
	Engine  *ammapp.Engine
	Markets *marketapp.Registry
	Oracle  *oracleapp.Service
	Ledger  Ledger
	Stream  http.Handler
	Health  *health.Server
	Metrics http.Handler
	Clock   clock.Clock
	Logger  logger.LoggerInterface
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	deps    Deps
	log     logger.LoggerInterface
	tracer  apm.Tracer
	limiter *ratelimit.Keyed
	handler http.Handler
}

// New wires the routes and middleware.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Markets == nil || deps.Oracle == nil || deps.Ledger == nil {
		return nil, errors.New("server: engine, markets, oracle and ledger are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger.With("component", "http"),
		tracer: apm.NewTracer(instrumentationName),
	}
	if cfg.RateLimitRPM > 0 {
		s.limiter = ratelimit.NewKeyed(cfg.RateLimitRPM, 10*time.Minute)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.trace(h)
	h = s.logging(h)
	h = s.recoverPanics(h)
	s.handler = h

	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/markets", s.createMarket)
	mux.HandleFunc("GET /api/markets", s.listMarkets)
	mux.HandleFunc("GET /api/markets/{id}", s.getMarket)
	mux.HandleFunc("GET /api/markets/{id}/liquidity", s.getLiquidity)
	mux.HandleFunc("GET /api/markets/{id}/price", s.getPrice)
	mux.HandleFunc("GET /api/markets/{id}/positions/{user}", s.getPosition)
	mux.HandleFunc("GET /api/markets/{id}/estimate-removal", s.estimateRemoval)
	mux.HandleFunc("GET /api/markets/{id}/quote/buy", s.quoteBuy)
	mux.HandleFunc("GET /api/markets/{id}/quote/sell", s.quoteSell)
	mux.HandleFunc("GET /api/markets/{id}/events", s.listEvents)

	mux.HandleFunc("POST /api/markets/{id}/liquidity/add", s.addLiquidity)
	mux.HandleFunc("POST /api/markets/{id}/liquidity/remove", s.removeLiquidity)
	mux.HandleFunc("POST /api/markets/{id}/buy", s.buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", s.sell)
	mux.HandleFunc("POST /api/markets/{id}/redeem", s.redeem)

	mux.HandleFunc("GET /api/markets/{id}/oracle", s.getProposal)
	mux.HandleFunc("POST /api/markets/{id}/oracle/propose", s.propose)
	mux.HandleFunc("POST /api/markets/{id}/oracle/dispute", s.dispute)
	mux.HandleFunc("POST /api/markets/{id}/oracle/settle", s.settle)
	mux.HandleFunc("POST /api/markets/{id}/oracle/finalize", s.finalize)

	mux.HandleFunc("GET /api/tokens", s.listTokens)
	mux.HandleFunc("POST /api/admin/tokens", s.setTokenInfo)
	mux.HandleFunc("GET /api/balances/{account}", s.getBalances)
	if s.cfg.Faucet {
		mux.HandleFunc("POST /api/faucet", s.faucet)
	}

	if s.deps.Stream != nil {
		mux.Handle("GET /ws", s.deps.Stream)
	}
	if s.deps.Health != nil {
		s.deps.Health.Mount(mux)
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx, time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", srv.Addr, "faucet", s.cfg.Faucet)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info(ctx, "http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}
