package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// HandlerRegistry holds the command-id-keyed handler table and owns
// their lifecycle (spec.md §4.3). Registration order is preserved so
// Tick and Start/Stop run in a deterministic sequence.
type HandlerRegistry struct {
	mu      sync.Mutex
	byCmd   map[string]types.Handler
	order   []types.Handler
	started bool
}

// NewHandlerRegistry builds an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byCmd: make(map[string]types.Handler)}
}

// Add registers h, returning types.ErrDuplicateHandler if its command
// id is already taken.
func (r *HandlerRegistry) Add(h types.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(h.CommandID())
	if _, exists := r.byCmd[key]; exists {
		return fmt.Errorf("%w: %q", types.ErrDuplicateHandler, key)
	}
	r.byCmd[key] = h
	r.order = append(r.order, h)
	return nil
}

// Get looks a handler up by wire command id.
func (r *HandlerRegistry) Get(command []byte) (types.Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byCmd[string(command)]
	return h, ok
}

// All returns the handlers in registration order.
func (r *HandlerRegistry) All() []types.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Handler, len(r.order))
	copy(out, r.order)
	return out
}

// StartAll calls Start on every handler exactly once, regardless of
// how many times it is invoked.
func (r *HandlerRegistry) StartAll() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	handlers := append([]types.Handler(nil), r.order...)
	r.mu.Unlock()

	for _, h := range handlers {
		h.Start()
	}
}

// StopAll calls Stop on every handler exactly once.
func (r *HandlerRegistry) StopAll() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	handlers := append([]types.Handler(nil), r.order...)
	r.mu.Unlock()

	for _, h := range handlers {
		h.Stop()
	}
}

// TickAll invokes Tick on every registered handler, in registration
// order, once per app-worker loop (spec.md §4.8).
func (r *HandlerRegistry) TickAll(tick time.Time) {
	for _, h := range r.All() {
		h.Tick(tick)
	}
}
