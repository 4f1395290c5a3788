package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/circuitbreaker"
	"github.com/fd1az/prediction-amm/internal/logger"
	store "github.com/fd1az/prediction-amm/internal/storage/redis"
)

const defaultQueueSize = 1024

// Publisher sends committed events to a Redis pub/sub channel. Publish only
// enqueues; Run drains the queue.
type Publisher struct {
	rdb     *goredis.Client
	channel string
	queue   chan []byte
	cb      *circuitbreaker.CircuitBreaker[struct{}]
	log     logger.LoggerInterface
	dropped atomic.Uint64
}

// NewPublisher creates a publisher on the "{prefix}:events" channel.
func NewPublisher(c *store.Client, queueSize int, log logger.LoggerInterface) *Publisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{
		rdb:     c.Underlying(),
		channel: c.Key("events"),
		queue:   make(chan []byte, queueSize),
		cb:      circuitbreaker.New[struct{}](circuitbreaker.DefaultConfig("redis-events")),
		log:     log.With("component", "redis_publisher"),
	}
}

// Channel returns the pub/sub channel name.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish implements app.EventPublisher.
func (p *Publisher) Publish(_ context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: encode event %s: %w", e.ID, err)
	}

	select {
	case p.queue <- payload:
		return nil
	default:
		p.dropped.Add(1)
		return apperror.New(apperror.CodePublishFailed, apperror.WithContext("redis event queue full"))
	}
}

// Dropped returns how many events were discarded on a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-p.queue:
			_, err := p.cb.Execute(func() (struct{}, error) {
				return struct{}{}, p.rdb.Publish(ctx, p.channel, payload).Err()
			})
			if err != nil {
				p.log.Warn(ctx, "event publish failed", "channel", p.channel, "error", err)
			}
		}
	}
}

var _ app.EventPublisher = (*Publisher)(nil)
