package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/sigdeck/internal/logx"
	"pkt.systems/sigdeck/schema"
)

// StreamEvent is sent to SSE clients. Seq numbers are assigned in publish
// order and drive Last-Event-ID replay.
type StreamEvent struct {
	Seq       uint64                `json:"seq"`
	Type      string                `json:"type"`
	State     *schema.StateSnapshot `json:"state,omitempty"`
	Snapshot  *SnapshotPayload      `json:"snapshot,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	State    schema.StateSnapshot    `json:"state"`
	Activity schema.ActivitySnapshot `json:"activity"`
}

// Hub broadcasts state events to all SSE subscribers. Console state is
// shared, so there is a single sequence and history for every client.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
}

// NewHub constructs a hub with the given replay history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
	}
}

// OnStateEvent implements core.EventSink.
func (h *Hub) OnStateEvent(event schema.StateEvent) {
	state := event.State
	h.publish(StreamEvent{
		Type:      string(event.Type),
		State:     &state,
		Timestamp: time.Now(),
	})
}

// Subscribe registers an SSE subscriber and returns its channel, an
// unsubscribe func, and a copy of the history. The copy is taken
// atomically with registration: every event published afterwards arrives
// on the channel, so channel and history never overlap or leave a gap.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), []StreamEvent) {
	h.mu.Lock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), h.history...)
	subs := len(h.subs)
	h.mu.Unlock()

	log := logx.Ctx(context.Background())
	log.Info("hub subscribe", "subs", subs, "history", len(history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, history
}

// replayAfter filters a history snapshot to events newer than the
// client's Last-Event-ID.
func replayAfter(history []StreamEvent, after uint64) []StreamEvent {
	events := make([]StreamEvent, 0, len(history))
	for _, event := range history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	// Sends stay under the lock: they are non-blocking, and unsub closes
	// channels under the same lock, so no send can hit a closed channel.
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		logx.Ctx(context.Background()).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
