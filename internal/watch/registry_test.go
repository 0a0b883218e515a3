package watch

import (
	"testing"

	"pkt.systems/sigdeck/schema"
)

func TestSubscribeDeliversInRegistrationOrder(t *testing.T) {
	registry := New(nil)
	var order []string
	registry.Subscribe(func(schema.StateEvent) { order = append(order, "first") })
	registry.Subscribe(func(schema.StateEvent) { order = append(order, "second") })

	registry.OnStateEvent(schema.StateEvent{Type: schema.StateEventConnection})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	registry := New(nil)
	calls := 0
	cancel := registry.Subscribe(func(schema.StateEvent) { calls++ })
	registry.OnStateEvent(schema.StateEvent{})
	cancel()
	cancel()
	registry.OnStateEvent(schema.StateEvent{})
	if calls != 1 {
		t.Fatalf("expected a single delivery, got %d", calls)
	}
}

func TestCancelDuringNotificationKeepsRoundIntact(t *testing.T) {
	registry := New(nil)
	var got []string
	var cancelSecond func()
	registry.Subscribe(func(schema.StateEvent) {
		got = append(got, "first")
		cancelSecond()
	})
	cancelSecond = registry.Subscribe(func(schema.StateEvent) {
		got = append(got, "second")
	})

	registry.OnStateEvent(schema.StateEvent{})

	if len(got) != 2 {
		t.Fatalf("expected both listeners in the same round, got %v", got)
	}

	got = nil
	registry.OnStateEvent(schema.StateEvent{})
	if len(got) != 1 || got[0] != "first" {
		t.Fatalf("expected only the first listener after cancel, got %v", got)
	}
}

func TestSelfCancelInsideListener(t *testing.T) {
	registry := New(nil)
	calls := 0
	var cancel func()
	cancel = registry.Subscribe(func(schema.StateEvent) {
		calls++
		cancel()
	})
	registry.OnStateEvent(schema.StateEvent{})
	registry.OnStateEvent(schema.StateEvent{})
	if calls != 1 {
		t.Fatalf("expected listener to stop after self-cancel, got %d calls", calls)
	}
}

func TestEventCarriesSnapshot(t *testing.T) {
	registry := New(nil)
	var seen schema.StateSnapshot
	registry.Subscribe(func(event schema.StateEvent) { seen = event.State })

	registry.OnStateEvent(schema.StateEvent{
		Type: schema.StateEventRoster,
		State: schema.StateSnapshot{
			Connected:     true,
			Projects:      []schema.Project{{ID: "a", Name: "Alpha"}},
			ActiveProject: "a",
		},
	})

	if !seen.Connected || len(seen.Projects) != 1 || seen.ActiveProject != "a" {
		t.Fatalf("unexpected snapshot: %+v", seen)
	}
}
