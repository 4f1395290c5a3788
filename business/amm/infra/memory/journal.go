package memory

import (
	"context"
	"sync"

	"github.com/fd1az/prediction-amm/business/amm/domain"
)

// DefaultJournalCapacity bounds the events kept per market.
const DefaultJournalCapacity = 1024

// Journal keeps the most recent events of every market in memory.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	events   map[uint64][]domain.Event
}

// NewJournal creates a journal keeping up to capacity events per market.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{
		capacity: capacity,
		events:   make(map[uint64][]domain.Event),
	}
}

// Append records e, dropping the oldest event of the market when full.
func (j *Journal) Append(_ context.Context, e domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	list := append(j.events[e.MarketID], e)
	if len(list) > j.capacity {
		list = append([]domain.Event(nil), list[len(list)-j.capacity:]...)
	}
	j.events[e.MarketID] = list
	return nil
}

// List returns up to limit of the latest events of a market, oldest first.
func (j *Journal) List(_ context.Context, marketID uint64, limit int) ([]domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	list := j.events[marketID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]domain.Event(nil), list...), nil
}
