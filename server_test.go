package sigdeck

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/httpapi"
	"pkt.systems/sigdeck/schema"
	"pkt.systems/sigdeck/transport"
)

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (c *countingSink) OnStateEvent(schema.StateEvent) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestNewRequiresServices(t *testing.T) {
	if _, err := New(ServerConfig{}, ServerDeps{}); err == nil {
		t.Fatalf("expected error when no services are enabled")
	}
}

func TestServerStopClosesStore(t *testing.T) {
	store, err := core.NewStore(schema.StoreConfig{}, core.StoreDeps{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	server := &compositeServer{
		store:   store,
		ctx:     ctx,
		cancel:  cancel,
		started: true,
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected server context to be canceled")
	}
	if _, err := store.SetConnected(context.Background(), schema.SetConnectedRequest{Connected: true}); err == nil {
		t.Fatalf("expected store to be closed")
	}
}

func TestNewFansEventsOut(t *testing.T) {
	sink := &countingSink{}
	cfg := ServerConfig{
		Feed: transport.FeedConfig{Addr: "127.0.0.1:1"},
		HTTP: httpapi.Config{Addr: "127.0.0.1:0"},
		Auth: AuthConfig{UserFile: filepath.Join(t.TempDir(), "users.yaml")},
	}
	server, err := New(cfg, ServerDeps{EventSink: sink}, WithHTTP(), WithFeed())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	composite := server.(*compositeServer)
	t.Cleanup(func() { _ = composite.store.Close() })

	if _, err := composite.store.SetConnected(context.Background(), schema.SetConnectedRequest{Connected: true}); err != nil {
		t.Fatalf("set connected: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("extra sink saw %d events, want 1", sink.count())
	}
}

func TestServerWatchDeliversEvents(t *testing.T) {
	cfg := ServerConfig{
		HTTP: httpapi.Config{Addr: "127.0.0.1:0"},
		Auth: AuthConfig{UserFile: filepath.Join(t.TempDir(), "users.yaml")},
	}
	server, err := New(cfg, ServerDeps{}, WithHTTP())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	composite := server.(*compositeServer)
	t.Cleanup(func() { _ = composite.store.Close() })

	var events []schema.StateEvent
	cancel := server.Watch(func(event schema.StateEvent) {
		events = append(events, event)
	})
	defer cancel()

	if _, err := composite.store.SetConnected(context.Background(), schema.SetConnectedRequest{Connected: true}); err != nil {
		t.Fatalf("set connected: %v", err)
	}
	if len(events) != 1 || events[0].Type != schema.StateEventConnection {
		t.Fatalf("watch saw %+v", events)
	}

	cancel()
	if _, err := composite.store.SetConnected(context.Background(), schema.SetConnectedRequest{Connected: false}); err != nil {
		t.Fatalf("set connected: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected no events after cancel, got %d", len(events))
	}
}

func TestEventFanoutSkipsNilSinks(t *testing.T) {
	sink := &countingSink{}
	fanout := eventFanout{sinks: []core.EventSink{nil, sink}}
	fanout.OnStateEvent(schema.StateEvent{Type: schema.StateEventConnection})
	if sink.count() != 1 {
		t.Fatalf("sink saw %d events, want 1", sink.count())
	}
}
