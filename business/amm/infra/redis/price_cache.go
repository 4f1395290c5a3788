// Package redis publishes AMM prices and events through Redis.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/internal/cache"
	"github.com/fd1az/prediction-amm/internal/circuitbreaker"
	store "github.com/fd1az/prediction-amm/internal/storage/redis"
)

// DefaultPriceTTL is how long prices stay in the local cache.
const DefaultPriceTTL = 30 * time.Second

// Prices is the latest quote of a market.
type Prices struct {
	Yes uint256.Int
	No  uint256.Int
	At  time.Time
}

// PriceCache keeps the latest prices of every market in a Redis hash per
// market ("{prefix}:prices:{id}" with fields yes, no and at), fronted by a
// local TTL cache.
type PriceCache struct {
	rdb    *goredis.Client
	client *store.Client
	local  *cache.Cache[uint64, Prices]
	cb     *circuitbreaker.CircuitBreaker[struct{}]
	ttl    time.Duration
}

// NewPriceCache creates a PriceCache on c.
func NewPriceCache(c *store.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{
		rdb:    c.Underlying(),
		client: c,
		local:  cache.New[uint64, Prices](ttl),
		cb:     circuitbreaker.New[struct{}](circuitbreaker.DefaultConfig("redis-prices")),
		ttl:    ttl,
	}
}

func (pc *PriceCache) key(marketID uint64) string {
	return pc.client.Key("prices:" + strconv.FormatUint(marketID, 10))
}

// SetPrices implements app.PriceCache.
func (pc *PriceCache) SetPrices(ctx context.Context, marketID uint64, yes, no *uint256.Int, at time.Time) error {
	var p Prices
	p.Yes.Set(yes)
	p.No.Set(no)
	p.At = at
	pc.local.Set(ctx, marketID, p, pc.ttl)

	_, err := pc.cb.Execute(func() (struct{}, error) {
		fields := map[string]any{
			"yes": yes.Dec(),
			"no":  no.Dec(),
			"at":  strconv.FormatInt(at.UnixNano(), 10),
		}
		return struct{}{}, pc.rdb.HSet(ctx, pc.key(marketID), fields).Err()
	})
	if err != nil {
		return fmt.Errorf("redis: set prices of market %d: %w", marketID, err)
	}
	return nil
}

// GetPrices returns the latest prices of a market. The bool is false when
// nothing was published yet.
func (pc *PriceCache) GetPrices(ctx context.Context, marketID uint64) (Prices, bool, error) {
	if p, ok := pc.local.Get(ctx, marketID); ok {
		return p, true, nil
	}

	vals, err := pc.rdb.HGetAll(ctx, pc.key(marketID)).Result()
	if err != nil {
		return Prices{}, false, fmt.Errorf("redis: get prices of market %d: %w", marketID, err)
	}
	if len(vals) == 0 {
		return Prices{}, false, nil
	}

	var p Prices
	if err := p.Yes.SetFromDecimal(vals["yes"]); err != nil {
		return Prices{}, false, fmt.Errorf("redis: parse yes price of market %d: %w", marketID, err)
	}
	if err := p.No.SetFromDecimal(vals["no"]); err != nil {
		return Prices{}, false, fmt.Errorf("redis: parse no price of market %d: %w", marketID, err)
	}
	ns, err := strconv.ParseInt(vals["at"], 10, 64)
	if err != nil {
		return Prices{}, false, fmt.Errorf("redis: parse timestamp of market %d: %w", marketID, err)
	}
	p.At = time.Unix(0, ns).UTC()

	pc.local.Set(ctx, marketID, p, pc.ttl)
	return p, true, nil
}

// Close stops the local cache sweeper.
func (pc *PriceCache) Close() {
	pc.local.Close()
}

var _ app.PriceCache = (*PriceCache)(nil)
