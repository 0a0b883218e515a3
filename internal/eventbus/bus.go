package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/schema"
)

// Bus fanouts store events to channel subscribers. Console sessions prefer
// channels over callbacks so they can select against their own lifecycle.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan schema.StateEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan schema.StateEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan schema.StateEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.StateEvent, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count)
	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; !ok {
			b.mu.Unlock()
			return
		}
		delete(b.subs, ch)
		// Close under the lock so a concurrent publish, which also sends
		// under the lock, can never hit a closed channel.
		close(ch)
		b.mu.Unlock()
		b.log.Debug("eventbus unsubscribe")
	}
}

// OnStateEvent implements core.EventSink. Sends never block; a full
// subscriber misses the event and resyncs from its next snapshot fetch.
func (b *Bus) OnStateEvent(event schema.StateEvent) {
	if b == nil {
		return
	}
	// Non-blocking sends under the lock, matching cancel's close.
	b.mu.Lock()
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "count", dropped)
	}
}
