package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/sigdeck/schema"
)

func newNoticeStore(t *testing.T, ttl time.Duration, sink EventSink) Store {
	t.Helper()
	store, err := NewStore(schema.StoreConfig{NoticeTTL: ttl}, StoreDeps{EventSink: sink})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitForNotice(t *testing.T, store Store, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := store.GetState(context.Background(), schema.GetStateRequest{})
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		if resp.State.Notice == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("notice never became %q", want)
}

func TestNoticeExpiresAfterTTL(t *testing.T) {
	store := newNoticeStore(t, 20*time.Millisecond, nil)
	ctx := context.Background()

	resp, err := store.SetNotice(ctx, schema.SetNoticeRequest{Text: "copied"})
	if err != nil {
		t.Fatalf("set notice: %v", err)
	}
	if resp.State.Notice != "copied" {
		t.Fatalf("expected notice in snapshot, got %q", resp.State.Notice)
	}
	waitForNotice(t, store, "")
}

func TestNoticeOverwriteRestartsTimer(t *testing.T) {
	store := newNoticeStore(t, 40*time.Millisecond, nil)
	ctx := context.Background()

	if _, err := store.SetNotice(ctx, schema.SetNoticeRequest{Text: "first"}); err != nil {
		t.Fatalf("set notice: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, err := store.SetNotice(ctx, schema.SetNoticeRequest{Text: "second"}); err != nil {
		t.Fatalf("set notice again: %v", err)
	}

	// The first timer's window has passed but its generation is stale, so
	// the second notice must still be visible.
	time.Sleep(25 * time.Millisecond)
	resp, err := store.GetState(ctx, schema.GetStateRequest{})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if resp.State.Notice != "second" {
		t.Fatalf("stale timer cleared the replacement notice, got %q", resp.State.Notice)
	}
	waitForNotice(t, store, "")
}

func TestNoticeRejectsBlankText(t *testing.T) {
	store := newNoticeStore(t, time.Second, nil)
	_, err := store.SetNotice(context.Background(), schema.SetNoticeRequest{Text: "   "})
	if !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCloseCancelsNoticeTimer(t *testing.T) {
	sink := &recordSink{}
	store := newNoticeStore(t, 20*time.Millisecond, sink)

	if _, err := store.SetNotice(context.Background(), schema.SetNoticeRequest{Text: "bye"}); err != nil {
		t.Fatalf("set notice: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	before := len(sink.events)
	time.Sleep(50 * time.Millisecond)
	if len(sink.events) != before {
		t.Fatalf("timer fired after close")
	}
}

func TestSetThemeValidatesAndDeduplicates(t *testing.T) {
	sink := &recordSink{}
	store := newTestStore(t, sink)
	ctx := context.Background()

	_, err := store.SetTheme(ctx, schema.SetThemeRequest{Theme: "neon"})
	if !errors.Is(err, schema.ErrInvalidTheme) {
		t.Fatalf("expected ErrInvalidTheme, got %v", err)
	}

	resp, err := store.SetTheme(ctx, schema.SetThemeRequest{Theme: "mono"})
	if err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if resp.Theme != "mono" {
		t.Fatalf("expected theme mono, got %q", resp.Theme)
	}
	before := len(sink.events)
	if _, err := store.SetTheme(ctx, schema.SetThemeRequest{Theme: "mono"}); err != nil {
		t.Fatalf("repeat set theme: %v", err)
	}
	if len(sink.events) != before {
		t.Fatalf("unchanged theme must not emit an event")
	}
}

func TestActivityRecordsTransitions(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	if _, err := store.SetConnected(ctx, schema.SetConnectedRequest{Connected: true}); err != nil {
		t.Fatalf("set connected: %v", err)
	}
	if _, err := store.ReplaceProjects(ctx, schema.ReplaceProjectsRequest{
		Projects: []schema.Project{{ID: "a", Name: "Alpha"}},
	}); err != nil {
		t.Fatalf("replace projects: %v", err)
	}
	if _, err := store.SelectProject(ctx, schema.SelectProjectRequest{ProjectID: "a"}); err != nil {
		t.Fatalf("select project: %v", err)
	}

	resp, err := store.GetActivity(ctx, schema.GetActivityRequest{Limit: 2})
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if resp.Activity.TotalLines != 3 {
		t.Fatalf("expected 3 activity lines, got %d", resp.Activity.TotalLines)
	}
	if len(resp.Activity.Lines) != 2 {
		t.Fatalf("expected limit to trim to 2 lines, got %d", len(resp.Activity.Lines))
	}
	if resp.Activity.Lines[1] != "active project set to a" {
		t.Fatalf("unexpected last activity line: %q", resp.Activity.Lines[1])
	}
}
