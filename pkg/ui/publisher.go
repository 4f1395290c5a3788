// Package ui provides the Bubble Tea dashboard for the prediction market AMM.
package ui

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	ammapp "github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
)

var _ ammapp.EventPublisher = (*Publisher)(nil)

// Publisher forwards committed engine events to the dashboard. Publish never
// blocks: events beyond the buffer are dropped and counted.
type Publisher struct {
	events  chan domain.Event
	dropped atomic.Uint64
}

// NewPublisher creates a publisher holding up to buffer pending events.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Publisher{events: make(chan domain.Event, buffer)}
}

// Publish queues an event for the dashboard.
func (p *Publisher) Publish(_ context.Context, e domain.Event) error {
	select {
	case p.events <- e:
	default:
		p.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many events did not fit the buffer.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run delivers queued events to send until ctx is done.
func (p *Publisher) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.events:
			send(EventMsg{Event: e})
		}
	}
}

// SnapshotSource reports the state of every pool.
type SnapshotSource interface {
	Snapshot(ctx context.Context) []ammapp.PoolSnapshot
}

// PollSnapshots sends a SnapshotMsg immediately and then every interval
// until ctx is done.
func PollSnapshots(ctx context.Context, src SnapshotSource, interval time.Duration, now func() time.Time, send func(tea.Msg)) {
	push := func() {
		at := now()
		send(SnapshotMsg{Markets: MarketRows(src.Snapshot(ctx), at), At: at})
	}

	push()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			push()
		}
	}
}
