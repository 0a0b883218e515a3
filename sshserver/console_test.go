package sshserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/schema"
)

type fakeConsoleAuth struct {
	changed bool
}

func (f *fakeConsoleAuth) HasLoginPubKey(username schema.UserID, key gossh.PublicKey) (bool, error) {
	return false, nil
}

func (f *fakeConsoleAuth) ValidateTOTP(username schema.UserID, totpCode string) error {
	return nil
}

func (f *fakeConsoleAuth) ChangePassword(username schema.UserID, currentPassword, totpCode, newPassword string) error {
	if currentPassword != "old-secret" || totpCode != "123456" || newPassword != "new-secret" {
		return errors.New("bad credentials")
	}
	f.changed = true
	return nil
}

type fakeTerminalConn struct {
	in  io.Reader
	out bytes.Buffer
}

func (f *fakeTerminalConn) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeTerminalConn) Write(p []byte) (int, error) { return f.out.Write(p) }

func newConsoleUnderTest(t *testing.T, input string) (*console, *fakeTerminalConn, core.Store, *fakeConsoleAuth) {
	t.Helper()
	store, err := core.NewStore(schema.StoreConfig{}, core.StoreDeps{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	auth := &fakeConsoleAuth{}
	conn := &fakeTerminalConn{in: strings.NewReader(input)}
	c := newConsole(nil, store, auth, "operator", "> ", nil)
	c.term = term.NewTerminal(conn, "> ")
	return c, conn, store, auth
}

func seedRoster(t *testing.T, store core.Store, ids ...schema.ProjectID) {
	t.Helper()
	projects := make([]schema.Project, 0, len(ids))
	for _, id := range ids {
		projects = append(projects, schema.Project{ID: id, Name: schema.ProjectName(id)})
	}
	if _, err := store.ReplaceProjects(context.Background(), schema.ReplaceProjectsRequest{Projects: projects}); err != nil {
		t.Fatalf("replace projects: %v", err)
	}
}

func TestConsoleUseSelectsProject(t *testing.T) {
	c, _, store, _ := newConsoleUnderTest(t, "")
	seedRoster(t, store, "alpha", "beta")

	quit, err := c.handleLine(context.Background(), "/use beta")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if quit {
		t.Fatalf("use should not quit the console")
	}

	state, err := store.GetState(context.Background(), schema.GetStateRequest{})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.State.ActiveProject != "beta" {
		t.Fatalf("active project = %q, want beta", state.State.ActiveProject)
	}
}

func TestConsoleUseUnknownProject(t *testing.T) {
	c, _, store, _ := newConsoleUnderTest(t, "")
	seedRoster(t, store, "alpha")

	if _, err := c.handleLine(context.Background(), "/use missing"); !errors.Is(err, schema.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}

func TestConsoleClearSelection(t *testing.T) {
	c, _, store, _ := newConsoleUnderTest(t, "")
	seedRoster(t, store, "alpha")
	if _, err := c.handleLine(context.Background(), "/use alpha"); err != nil {
		t.Fatalf("use: %v", err)
	}

	if _, err := c.handleLine(context.Background(), "/clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	state, err := store.GetState(context.Background(), schema.GetStateRequest{})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.State.ActiveProject != "" {
		t.Fatalf("active project = %q, want empty", state.State.ActiveProject)
	}
}

func TestConsoleQuit(t *testing.T) {
	c, _, _, _ := newConsoleUnderTest(t, "")
	quit, err := c.handleLine(context.Background(), "/quit")
	if err != nil {
		t.Fatalf("quit: %v", err)
	}
	if !quit {
		t.Fatalf("quit should end the console loop")
	}
}

func TestConsoleRunReleasesReader(t *testing.T) {
	// A line queued behind /quit must not strand the reader goroutine
	// on a send nobody receives.
	c, _, store, _ := newConsoleUnderTest(t, "/quit\n/status\n")
	seedRoster(t, store, "alpha")

	before := runtime.NumGoroutine()
	if err := c.run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > before {
		t.Fatalf("reader goroutine still running: %d goroutines, started with %d", n, before)
	}
}

func TestConsoleUnknownCommand(t *testing.T) {
	c, _, _, _ := newConsoleUnderTest(t, "")
	if _, err := c.handleLine(context.Background(), "/bogus"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if _, err := c.handleLine(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for bare text")
	}
}

func TestConsoleThemeSwitch(t *testing.T) {
	c, _, _, _ := newConsoleUnderTest(t, "")
	if _, err := c.handleLine(context.Background(), "/theme amber"); err != nil {
		t.Fatalf("theme: %v", err)
	}
	if c.theme.Name != "amber" {
		t.Fatalf("console theme = %q, want amber", c.theme.Name)
	}

	if _, err := c.handleLine(context.Background(), "/theme neon"); !errors.Is(err, schema.ErrInvalidTheme) {
		t.Fatalf("expected ErrInvalidTheme, got %v", err)
	}
}

func TestConsoleNotice(t *testing.T) {
	c, _, store, _ := newConsoleUnderTest(t, "")
	if _, err := c.handleLine(context.Background(), "/notice deploy window open"); err != nil {
		t.Fatalf("notice: %v", err)
	}
	state, err := store.GetState(context.Background(), schema.GetStateRequest{})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.State.Notice != "deploy window open" {
		t.Fatalf("notice = %q", state.State.Notice)
	}

	if _, err := c.handleLine(context.Background(), "/notice"); err == nil {
		t.Fatalf("expected usage error for bare /notice")
	}
}

func TestConsolePasswordChange(t *testing.T) {
	c, _, _, auth := newConsoleUnderTest(t, "old-secret\n123456\nnew-secret\nnew-secret\n")
	if _, err := c.handleLine(context.Background(), "/passwd"); err != nil {
		t.Fatalf("passwd: %v", err)
	}
	if !auth.changed {
		t.Fatalf("password change not applied")
	}
}

func TestConsolePasswordMismatch(t *testing.T) {
	c, _, _, auth := newConsoleUnderTest(t, "old-secret\n123456\nnew-secret\nother\n")
	if _, err := c.handleLine(context.Background(), "/passwd"); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if auth.changed {
		t.Fatalf("password must not change on mismatch")
	}
}

func TestConsoleEventRendering(t *testing.T) {
	c, conn, _, _ := newConsoleUnderTest(t, "")
	c.printEvent(schema.StateEvent{
		Type:  schema.StateEventConnection,
		State: schema.StateSnapshot{Connected: true},
	})
	if !strings.Contains(conn.out.String(), "backend connected") {
		t.Fatalf("missing connection line in %q", conn.out.String())
	}

	c.printEvent(schema.StateEvent{
		Type:  schema.StateEventTheme,
		State: schema.StateSnapshot{Theme: "mono"},
	})
	if c.theme.Name != "mono" {
		t.Fatalf("theme after event = %q, want mono", c.theme.Name)
	}
}
