// Package watch provides callback-style subscriptions to store events.
package watch

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/schema"
)

// Listener receives state events. Listeners run on the publisher's
// goroutine and must not block.
type Listener func(event schema.StateEvent)

// Registry fans state events out to registered listeners. It implements
// core.EventSink. Delivery happens over a stable snapshot of the listener
// list, so canceling a subscription (even from inside a listener) never
// corrupts an in-flight notification round.
type Registry struct {
	mu        sync.Mutex
	seq       uint64
	listeners map[uint64]Listener
	order     []uint64
	log       pslog.Logger
}

// New constructs a Registry.
func New(logger pslog.Logger) *Registry {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{
		listeners: make(map[uint64]Listener),
		log:       logger,
	}
}

// Subscribe registers a listener and returns a cancel func. Cancel is
// idempotent and safe to call from within the listener itself.
func (r *Registry) Subscribe(fn Listener) func() {
	if r == nil || fn == nil {
		return func() {}
	}
	r.mu.Lock()
	r.seq++
	id := r.seq
	r.listeners[id] = fn
	r.order = append(r.order, id)
	count := len(r.listeners)
	r.mu.Unlock()
	r.log.Debug("watch subscribe", "listeners", count)
	return func() {
		r.mu.Lock()
		if _, ok := r.listeners[id]; !ok {
			r.mu.Unlock()
			return
		}
		delete(r.listeners, id)
		for i, entry := range r.order {
			if entry == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		remaining := len(r.listeners)
		r.mu.Unlock()
		r.log.Debug("watch unsubscribe", "listeners", remaining)
	}
}

// OnStateEvent implements core.EventSink.
func (r *Registry) OnStateEvent(event schema.StateEvent) {
	if r == nil {
		return
	}
	r.mu.Lock()
	round := make([]Listener, 0, len(r.order))
	for _, id := range r.order {
		if fn := r.listeners[id]; fn != nil {
			round = append(round, fn)
		}
	}
	r.mu.Unlock()
	for _, fn := range round {
		fn(event)
	}
}
