package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/term"

	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/internal/logx"
	"pkt.systems/sigdeck/schema"
)

// console is the interactive line console bound to one SSH session.
type console struct {
	sess   gliderssh.Session
	store  core.Store
	auth   LoginAuthStore
	userID schema.UserID
	prompt string
	events <-chan schema.StateEvent

	term  *term.Terminal
	theme consoleTheme
	width int
}

func newConsole(sess gliderssh.Session, store core.Store, auth LoginAuthStore, userID schema.UserID, prompt string, events <-chan schema.StateEvent) *console {
	return &console{
		sess:   sess,
		store:  store,
		auth:   auth,
		userID: userID,
		prompt: prompt,
		events: events,
		theme:  themeFor(schema.DefaultTheme),
	}
}

func (c *console) setSize(width, height int) {
	if width > 0 {
		c.width = width
	}
	if c.term != nil {
		_ = c.term.SetSize(width, height)
	}
}

func (c *console) run(ctx context.Context, winCh <-chan gliderssh.Window) error {
	log := logx.Ctx(ctx)
	if c.term == nil {
		c.term = term.NewTerminal(c.sess, c.prompt)
	}
	if c.width > 0 {
		_ = c.term.SetSize(c.width, 0)
	}

	state, err := c.store.GetState(ctx, schema.GetStateRequest{})
	if err != nil {
		return err
	}
	c.theme = themeFor(state.State.Theme)
	c.printBanner(state.State)

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		for {
			line, err := c.term.ReadLine()
			if err != nil {
				readErr <- err
				return
			}
			// Select against done so the reader exits once run returns,
			// instead of blocking on a send nobody receives.
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case win := <-winCh:
			c.setSize(win.Width, win.Height)
		case event := <-c.events:
			c.printEvent(event)
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			quit, err := c.handleLine(ctx, strings.TrimSpace(line))
			if err != nil {
				c.printAlert(err.Error())
				log.Debug("ssh console command failed", "err", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *console) handleLine(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit", "/exit", "/q":
		c.printMeta("bye")
		return true, nil
	case "/help", "/?":
		c.printHelp()
		return false, nil
	case "/status":
		return false, c.showStatus(ctx)
	case "/projects", "/ls":
		return false, c.showProjects(ctx)
	case "/use":
		if rest == "" {
			return false, errors.New("usage: /use <project-id>")
		}
		resp, err := c.store.SelectProject(ctx, schema.SelectProjectRequest{
			UserID:    c.userID,
			ProjectID: schema.ProjectID(rest),
		})
		if err != nil {
			return false, err
		}
		c.printAccent(fmt.Sprintf("active project: %s", resp.State.ActiveProject))
		return false, nil
	case "/clear":
		if _, err := c.store.ClearSelection(ctx, schema.ClearSelectionRequest{UserID: c.userID}); err != nil {
			return false, err
		}
		c.printMeta("selection cleared")
		return false, nil
	case "/notice":
		if rest == "" {
			return false, errors.New("usage: /notice <text>")
		}
		if _, err := c.store.SetNotice(ctx, schema.SetNoticeRequest{UserID: c.userID, Text: rest}); err != nil {
			return false, err
		}
		return false, nil
	case "/activity":
		limit := 20
		if rest != "" {
			parsed, err := strconv.Atoi(rest)
			if err != nil || parsed <= 0 {
				return false, errors.New("usage: /activity [count]")
			}
			limit = parsed
		}
		return false, c.showActivity(ctx, limit)
	case "/theme":
		if rest == "" {
			themes := schema.AvailableThemes()
			names := make([]string, 0, len(themes))
			for _, name := range themes {
				names = append(names, string(name))
			}
			c.printMeta("themes: " + strings.Join(names, ", "))
			return false, nil
		}
		resp, err := c.store.SetTheme(ctx, schema.SetThemeRequest{
			UserID: c.userID,
			Theme:  schema.ThemeName(rest),
		})
		if err != nil {
			return false, err
		}
		c.theme = themeFor(resp.Theme)
		c.printAccent("theme: " + string(resp.Theme))
		return false, nil
	case "/passwd":
		return false, c.changePassword()
	default:
		if strings.HasPrefix(cmd, "/") {
			return false, fmt.Errorf("unknown command %s; try /help", cmd)
		}
		return false, fmt.Errorf("commands start with /; try /help")
	}
}

func (c *console) showStatus(ctx context.Context) error {
	resp, err := c.store.GetState(ctx, schema.GetStateRequest{})
	if err != nil {
		return err
	}
	state := resp.State
	conn := "offline"
	if state.Connected {
		conn = "online"
	}
	active := "none"
	if state.ActiveProject != "" {
		active = string(state.ActiveProject)
	}
	c.printAccent(fmt.Sprintf("backend %s, %d projects, active: %s", conn, len(state.Projects), active))
	if state.Notice != "" {
		c.printMeta("notice: " + state.Notice)
	}
	return nil
}

func (c *console) showProjects(ctx context.Context) error {
	resp, err := c.store.GetState(ctx, schema.GetStateRequest{})
	if err != nil {
		return err
	}
	if len(resp.State.Projects) == 0 {
		c.printMeta("no projects")
		return nil
	}
	for _, project := range resp.State.Projects {
		marker := "  "
		if project.ID == resp.State.ActiveProject {
			marker = "* "
		}
		c.write(fmt.Sprintf("%s%s%s%s  %s%s%s", marker, c.theme.Accent, project.ID, ansiReset, c.theme.Meta, project.Name, ansiReset))
	}
	return nil
}

func (c *console) showActivity(ctx context.Context, limit int) error {
	resp, err := c.store.GetActivity(ctx, schema.GetActivityRequest{Limit: limit})
	if err != nil {
		return err
	}
	if len(resp.Activity.Lines) == 0 {
		c.printMeta("no activity")
		return nil
	}
	for _, line := range resp.Activity.Lines {
		c.printMeta(line)
	}
	return nil
}

func (c *console) changePassword() error {
	current, err := c.term.ReadPassword("current password: ")
	if err != nil {
		return err
	}
	code, err := c.term.ReadPassword("verification code: ")
	if err != nil {
		return err
	}
	next, err := c.term.ReadPassword("new password: ")
	if err != nil {
		return err
	}
	confirm, err := c.term.ReadPassword("confirm password: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return errors.New("passwords do not match")
	}
	if err := c.auth.ChangePassword(c.userID, current, code, next); err != nil {
		return err
	}
	c.printAccent("password updated")
	return nil
}

func (c *console) printBanner(state schema.StateSnapshot) {
	c.printAccent("sigdeck console")
	c.printMeta("type /help for commands")
	conn := "offline"
	if state.Connected {
		conn = "online"
	}
	c.printMeta(fmt.Sprintf("backend %s, %d projects", conn, len(state.Projects)))
}

func (c *console) printHelp() {
	help := []string{
		"/status            backend and selection summary",
		"/projects          list the project roster",
		"/use <id>          select the active project",
		"/clear             clear the active project",
		"/notice <text>     flash a notice to all consoles",
		"/activity [n]      recent state transitions",
		"/theme [name]      list or switch themes",
		"/passwd            change your password",
		"/quit              close the session",
	}
	for _, line := range help {
		c.printMeta(line)
	}
}

func (c *console) printEvent(event schema.StateEvent) {
	state := event.State
	switch event.Type {
	case schema.StateEventConnection:
		if state.Connected {
			c.printAccent("backend connected")
		} else {
			c.printAlert("backend disconnected")
		}
	case schema.StateEventRoster:
		c.printMeta(fmt.Sprintf("roster updated (%d projects)", len(state.Projects)))
	case schema.StateEventSelection:
		if state.ActiveProject == "" {
			c.printMeta("active project cleared")
		} else {
			c.printAccent("active project: " + string(state.ActiveProject))
		}
	case schema.StateEventNotice:
		if state.Notice != "" {
			c.printAlert("notice: " + state.Notice)
		}
	case schema.StateEventTheme:
		c.theme = themeFor(state.Theme)
		c.printMeta("theme: " + string(state.Theme))
	}
}

func (c *console) printAccent(text string) {
	c.write(c.theme.Accent + text + ansiReset)
}

func (c *console) printMeta(text string) {
	c.write(c.theme.Meta + text + ansiReset)
}

func (c *console) printAlert(text string) {
	c.write(c.theme.Alert + text + ansiReset)
}

func (c *console) write(text string) {
	_, _ = c.term.Write([]byte(text + "\r\n"))
}
