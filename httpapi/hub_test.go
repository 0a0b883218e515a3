package httpapi

import (
	"sync"
	"testing"

	"pkt.systems/sigdeck/schema"
)

func stateEvent(eventType schema.StateEventType, active schema.ProjectID) schema.StateEvent {
	return schema.StateEvent{
		Type:  eventType,
		State: schema.StateSnapshot{ActiveProject: active},
	}
}

func TestHubSequencesAndReplays(t *testing.T) {
	hub := NewHub(10)
	hub.OnStateEvent(stateEvent(schema.StateEventConnection, ""))
	hub.OnStateEvent(stateEvent(schema.StateEventSelection, "a"))
	hub.OnStateEvent(stateEvent(schema.StateEventSelection, "b"))

	_, unsub, history := hub.Subscribe()
	defer unsub()
	replay := replayAfter(history, 1)
	if len(replay) != 2 {
		t.Fatalf("expected 2 replayed events, got %d", len(replay))
	}
	if replay[0].Seq != 2 || replay[1].Seq != 3 {
		t.Fatalf("unexpected replay seqs: %d, %d", replay[0].Seq, replay[1].Seq)
	}
	if replay[1].State == nil || replay[1].State.ActiveProject != "b" {
		t.Fatalf("unexpected replay payload: %+v", replay[1])
	}
}

func TestHubHistoryIsBounded(t *testing.T) {
	hub := NewHub(2)
	for i := 0; i < 5; i++ {
		hub.OnStateEvent(stateEvent(schema.StateEventConnection, ""))
	}
	_, unsub, history := hub.Subscribe()
	defer unsub()
	if len(history) != 2 {
		t.Fatalf("expected history trimmed to 2, got %d", len(history))
	}
	if history[0].Seq != 4 {
		t.Fatalf("expected oldest kept seq 4, got %d", history[0].Seq)
	}
}

func TestHubSubscribeReceivesEvents(t *testing.T) {
	hub := NewHub(10)
	ch, unsub, history := hub.Subscribe()
	defer unsub()
	if len(history) != 0 {
		t.Fatalf("expected empty hub, got history %d", len(history))
	}

	hub.OnStateEvent(stateEvent(schema.StateEventRoster, ""))
	event := <-ch
	if event.Seq != 1 || event.Type != string(schema.StateEventRoster) {
		t.Fatalf("unexpected event: %+v", event)
	}

	unsub()
	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}

func TestHubSubscribeHistoryHasNoGap(t *testing.T) {
	hub := NewHub(10)
	hub.OnStateEvent(stateEvent(schema.StateEventConnection, ""))
	hub.OnStateEvent(stateEvent(schema.StateEventSelection, "a"))

	ch, unsub, history := hub.Subscribe()
	defer unsub()

	hub.OnStateEvent(stateEvent(schema.StateEventSelection, "b"))

	seen := map[uint64]bool{}
	for _, event := range history {
		seen[event.Seq] = true
	}
	event := <-ch
	if seen[event.Seq] {
		t.Fatalf("seq %d delivered in both history and channel", event.Seq)
	}
	seen[event.Seq] = true
	for seq := uint64(1); seq <= 3; seq++ {
		if !seen[seq] {
			t.Fatalf("seq %d missing from history+channel union", seq)
		}
	}
}

func TestHubUnsubscribeDuringBroadcast(t *testing.T) {
	hub := NewHub(10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.OnStateEvent(stateEvent(schema.StateEventConnection, ""))
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, unsub, _ := hub.Subscribe()
				unsub()
			}
		}()
	}
	wg.Wait()
	<-done
}
