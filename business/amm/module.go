// Package amm implements the pool engine bounded context: pricing, trading,
// liquidity and settlement.
package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/prediction-amm/business/amm/app"
	ammDI "github.com/fd1az/prediction-amm/business/amm/di"
	"github.com/fd1az/prediction-amm/business/amm/infra/memory"
	"github.com/fd1az/prediction-amm/business/amm/infra/postgres"
	ammredis "github.com/fd1az/prediction-amm/business/amm/infra/redis"
	"github.com/fd1az/prediction-amm/business/amm/infra/stream"
	"github.com/fd1az/prediction-amm/business/amm/infra/vault"
	marketDI "github.com/fd1az/prediction-amm/business/market/di"
	"github.com/fd1az/prediction-amm/internal/circuitbreaker"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/config"
	"github.com/fd1az/prediction-amm/internal/di"
	"github.com/fd1az/prediction-amm/internal/logger"
	"github.com/fd1az/prediction-amm/internal/monolith"
	pgstore "github.com/fd1az/prediction-amm/internal/storage/postgres"
	redisstore "github.com/fd1az/prediction-amm/internal/storage/redis"
)

const hubBuffer = 256

// Module implements the amm bounded context.
type Module struct{}

// RegisterServices registers the engine and its collaborators with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, ammDI.Ledger, func(sr di.ServiceRegistry) *memory.Ledger {
		return memory.NewLedger()
	})

	di.RegisterToken(c, ammDI.Hub, func(sr di.ServiceRegistry) *stream.Hub {
		return stream.NewHub(hubBuffer, sr.Get("logger").(logger.LoggerInterface))
	})

	di.RegisterToken(c, ammDI.RedisPublisher, func(sr di.ServiceRegistry) *ammredis.Publisher {
		rc, _ := sr.Get("redis").(*redisstore.Client)
		if rc == nil {
			return nil
		}
		return ammredis.NewPublisher(rc, 0, sr.Get("logger").(logger.LoggerInterface))
	})

	di.RegisterToken(c, ammDI.PriceCache, func(sr di.ServiceRegistry) *ammredis.PriceCache {
		rc, _ := sr.Get("redis").(*redisstore.Client)
		if rc == nil {
			return nil
		}
		return ammredis.NewPriceCache(rc, ammredis.DefaultPriceTTL)
	})

	// Every committed event goes to the websocket hub, Redis when
	// configured, and whatever the process attaches later (the TUI).
	di.RegisterToken(c, ammDI.Events, func(sr di.ServiceRegistry) *stream.Fanout {
		events := stream.NewFanout(ammDI.GetHub(sr))
		if pub := ammDI.GetRedisPublisher(sr); pub != nil {
			events.Add(pub)
		}
		return events
	})

	di.RegisterToken(c, ammDI.YieldVault, func(sr di.ServiceRegistry) *vault.Vault {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Vault.Enabled {
			return nil
		}
		return vault.New(ammDI.GetLedger(sr), vault.Options{
			Owner:          app.DefaultEscrow,
			YieldBpsPerDay: cfg.Vault.YieldBpsPerDay,
			Clock:          sr.Get("clock").(clock.Clock),
			Logger:         sr.Get("logger").(logger.LoggerInterface),
		})
	})

	di.RegisterToken(c, ammDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		deps := app.Deps{
			Markets:   marketDI.GetRegistry(sr),
			Ledger:    ammDI.GetLedger(sr),
			Publisher: ammDI.GetEvents(sr),
			Clock:     sr.Get("clock").(clock.Clock),
			Logger:    log,
		}

		if v := ammDI.GetYieldVault(sr); v != nil {
			breaker := circuitbreaker.DefaultConfig("vault")
			breaker.FailureThreshold = cfg.Vault.BreakerFailures
			breaker.Timeout = cfg.Vault.BreakerTimeout
			deps.Vault = vault.NewGuarded(v, breaker, log)
		}

		if pg, _ := sr.Get("postgres").(*pgstore.Client); pg != nil {
			deps.Journal = postgres.NewJournal(pg.Pool())
		} else {
			deps.Journal = memory.NewJournal(memory.DefaultJournalCapacity)
		}

		if pc := ammDI.GetPriceCache(sr); pc != nil {
			deps.Prices = pc
		}

		engine, err := app.NewEngine(deps, common.Address{})
		if err != nil {
			panic("failed to create amm engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup attaches the engine to market creation and starts the
// background loops of its collaborators.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	services := mono.Services()

	engine := ammDI.GetEngine(services)
	marketDI.GetRegistry(services).Subscribe(engine)

	if v := ammDI.GetYieldVault(services); v != nil {
		go v.Run(ctx, cfg.Vault.AccrualInterval)
	}
	if pub := ammDI.GetRedisPublisher(services); pub != nil {
		go pub.Run(ctx)
	}

	log.Info(ctx, "amm module started",
		"escrow", engine.Escrow().Hex(),
		"vault", cfg.Vault.Enabled,
		"journal", journalBackend(mono),
		"fee_bps", cfg.AMM.FeeBps,
	)
	return nil
}

func journalBackend(mono monolith.Monolith) string {
	if mono.Postgres() != nil {
		return "postgres"
	}
	return "memory"
}
