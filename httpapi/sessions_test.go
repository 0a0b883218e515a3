package httpapi

import (
	"testing"
	"time"
)

func TestSessionStoreCreateGetDelete(t *testing.T) {
	store := newSessionStore(time.Hour)
	token, sess := store.create("alice")
	if token == "" {
		t.Fatalf("expected token")
	}
	if sess.userID != "alice" {
		t.Fatalf("unexpected user id: %q", sess.userID)
	}
	if _, ok := store.get(token); !ok {
		t.Fatalf("expected session to be found")
	}
	store.delete(token)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected session to be deleted")
	}
}

func TestSessionStoreExpiration(t *testing.T) {
	store := newSessionStore(5 * time.Millisecond)
	token, _ := store.create("alice")
	time.Sleep(10 * time.Millisecond)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected expired session")
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	store := newSessionStore(time.Hour)
	a, _ := store.create("alice")
	b, _ := store.create("alice")
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
}
