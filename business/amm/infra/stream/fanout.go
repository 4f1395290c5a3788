package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
)

// Fanout publishes every event to each of its publishers. One failing
// publisher does not stop the others.
type Fanout struct {
	mu         sync.RWMutex
	publishers []app.EventPublisher
}

// NewFanout creates a Fanout over publishers, skipping nil entries.
func NewFanout(publishers ...app.EventPublisher) *Fanout {
	f := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Add appends p.
func (f *Fanout) Add(p app.EventPublisher) {
	if p == nil {
		return
	}
	f.mu.Lock()
	f.publishers = append(f.publishers, p)
	f.mu.Unlock()
}

// Len returns the number of publishers.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.publishers)
}

// Publish implements app.EventPublisher.
func (f *Fanout) Publish(ctx context.Context, e domain.Event) error {
	f.mu.RLock()
	publishers := f.publishers
	f.mu.RUnlock()

	var errs []error
	for _, p := range publishers {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ app.EventPublisher = (*Fanout)(nil)
