// Package workqueue is the in-process publish/subscribe event bus that
// backs the expression.Queue collaborator.
package workqueue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// Handler receives events published on a channel.
type Handler func(ctx context.Context, event domain.Event)

// Bus is a mutex-guarded fan-out of handlers per channel, grounded on the
// teacher's ObserverManager (a slice of observers under sync.RWMutex,
// notified per event).
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.Channel][]Handler
	log      zerolog.Logger
}

// New returns an empty Bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[domain.Channel][]Handler),
		log:      log.With().Str("component", "workqueue").Logger(),
	}
}

// Subscribe registers handler to receive every event published on channel.
func (b *Bus) Subscribe(channel domain.Channel, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
}

// Emit publishes best-effort: handlers run synchronously on a detached
// goroutine per subscriber and Emit does not wait for them.
func (b *Bus) Emit(ctx context.Context, event domain.Event) {
	b.log.Debug().Str("channel", string(event.Channel)).Str("kind", string(event.Kind)).Msg("emit")
	for _, h := range b.subscribers(event.Channel) {
		go h(ctx, event)
	}
}

// EmitSync publishes and blocks until every subscriber has returned, used
// for persist/unpersist so storage writes are committed before the
// triggering method returns (spec.md §4.7).
func (b *Bus) EmitSync(ctx context.Context, event domain.Event) {
	b.log.Debug().Str("channel", string(event.Channel)).Str("kind", string(event.Kind)).Msg("emit_sync")
	var wg sync.WaitGroup
	for _, h := range b.subscribers(event.Channel) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(ctx, event)
		}(h)
	}
	wg.Wait()
}

func (b *Bus) subscribers(channel domain.Channel) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers[channel]))
	copy(out, b.handlers[channel])
	return out
}
