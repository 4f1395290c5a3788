// Package stream fans committed AMM events out to live subscribers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/internal/logger"
)

const (
	defaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

// Hub broadcasts events to websocket clients. A client that cannot keep up
// loses events instead of slowing down the engine.
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan []byte]struct{}
	buffer  int
	log     logger.LoggerInterface
	dropped atomic.Uint64
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, log logger.LoggerInterface) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		subs:   make(map[chan []byte]struct{}),
		buffer: buffer,
		log:    log.With("component", "ws_hub"),
	}
}

// Publish implements app.EventPublisher.
func (h *Hub) Publish(_ context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("stream: encode event %s: %w", e.ID, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a new subscriber. The returned func unregisters it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Clients returns the number of live subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams events until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())
	h.log.Debug(ctx, "websocket client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-events:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				h.log.Debug(ctx, "websocket client gone", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

var _ app.EventPublisher = (*Hub)(nil)
