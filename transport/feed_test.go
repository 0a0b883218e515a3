package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/schema"
)

func newFeedStore(t *testing.T) core.Store {
	t.Helper()
	store, err := core.NewStore(schema.StoreConfig{}, core.StoreDeps{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitForState(t *testing.T, store core.Store, ok func(schema.StateSnapshot) bool) schema.StateSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last schema.StateSnapshot
	for time.Now().Before(deadline) {
		resp, err := store.GetState(context.Background(), schema.GetStateRequest{})
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		last = resp.State
		if ok(last) {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state never matched, last %+v", last)
	return last
}

func TestFeedAppliesStatusAndRoster(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(`{"type":"status","connected":true}` + "\n"))
		_, _ = conn.Write([]byte(`{"type":"projects","projects":[{"id":"a","name":"Alpha"},{"id":"b","name":"Beta"}]}` + "\n"))
		time.Sleep(2 * time.Second)
	}()

	store := newFeedStore(t)
	feed, err := NewFeed(FeedConfig{Addr: listener.Addr().String()}, store, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("start feed: %v", err)
	}
	defer feed.Stop()

	state := waitForState(t, store, func(s schema.StateSnapshot) bool {
		return s.Connected && len(s.Projects) == 2
	})
	if state.Projects[0].ID != "a" || state.Projects[1].ID != "b" {
		t.Fatalf("unexpected roster order: %+v", state.Projects)
	}
}

func TestFeedDropFlipsConnectivity(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(`{"type":"status","connected":true}` + "\n"))
		time.Sleep(50 * time.Millisecond)
		_ = conn.Close()
	}()

	store := newFeedStore(t)
	feed, err := NewFeed(FeedConfig{Addr: listener.Addr().String()}, store, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("start feed: %v", err)
	}
	defer feed.Stop()

	waitForState(t, store, func(s schema.StateSnapshot) bool { return s.Connected })
	waitForState(t, store, func(s schema.StateSnapshot) bool { return !s.Connected })
}

func TestFeedSkipsMalformedLines(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("not json\n"))
		_, _ = conn.Write([]byte(`{"type":"mystery"}` + "\n"))
		_, _ = conn.Write([]byte(`{"type":"projects","projects":[{"id":"a","name":"Alpha"},{"id":"a","name":"Dup"}]}` + "\n"))
		_, _ = conn.Write([]byte(`{"type":"projects","projects":[{"id":"ok","name":"Fine"}]}` + "\n"))
		time.Sleep(2 * time.Second)
	}()

	store := newFeedStore(t)
	feed, err := NewFeed(FeedConfig{Addr: listener.Addr().String()}, store, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("start feed: %v", err)
	}
	defer feed.Stop()

	state := waitForState(t, store, func(s schema.StateSnapshot) bool { return len(s.Projects) == 1 })
	if state.Projects[0].ID != "ok" {
		t.Fatalf("expected duplicate roster to be rejected, got %+v", state.Projects)
	}
}

func TestNewFeedValidatesConfig(t *testing.T) {
	store := newFeedStore(t)
	if _, err := NewFeed(FeedConfig{}, store, nil); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := NewFeed(FeedConfig{Addr: "127.0.0.1:7070"}, nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
