// Package di contains dependency injection tokens for the amm context.
package di

import (
	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/infra/memory"
	ammredis "github.com/fd1az/prediction-amm/business/amm/infra/redis"
	"github.com/fd1az/prediction-amm/business/amm/infra/stream"
	"github.com/fd1az/prediction-amm/business/amm/infra/vault"
	"github.com/fd1az/prediction-amm/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine = di.NewToken[*app.Engine]("amm.Engine")
	Ledger = di.NewToken[*memory.Ledger]("amm.Ledger")
	Hub    = di.NewToken[*stream.Hub]("amm.Hub")
	Events = di.NewToken[*stream.Fanout]("amm.Events")
)

// Private tokens - internal to the amm module. Nil when not configured.
var (
	YieldVault     = di.NewToken[*vault.Vault]("amm.YieldVault")
	RedisPublisher = di.NewToken[*ammredis.Publisher]("amm.RedisPublisher")
	PriceCache     = di.NewToken[*ammredis.PriceCache]("amm.PriceCache")
)

// GetEngine resolves the AMM engine.
func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

// GetLedger resolves the collateral ledger.
func GetLedger(c di.ServiceRegistry) *memory.Ledger {
	return di.GetToken(c, Ledger)
}

// GetHub resolves the websocket event hub.
func GetHub(c di.ServiceRegistry) *stream.Hub {
	return di.GetToken(c, Hub)
}

// GetEvents resolves the event fan-out every committed event goes through.
func GetEvents(c di.ServiceRegistry) *stream.Fanout {
	return di.GetToken(c, Events)
}

// GetYieldVault resolves the yield vault, nil when disabled.
func GetYieldVault(c di.ServiceRegistry) *vault.Vault {
	return di.GetToken(c, YieldVault)
}

// GetRedisPublisher resolves the Redis event publisher, nil without Redis.
func GetRedisPublisher(c di.ServiceRegistry) *ammredis.Publisher {
	return di.GetToken(c, RedisPublisher)
}

// GetPriceCache resolves the Redis price cache, nil without Redis.
func GetPriceCache(c di.ServiceRegistry) *ammredis.PriceCache {
	return di.GetToken(c, PriceCache)
}
