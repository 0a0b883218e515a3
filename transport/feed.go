// Package transport maintains the push feed from the signalops backend: a
// newline-delimited JSON stream over TCP carrying connectivity status and
// project roster updates, applied to the console state store.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/schema"
)

// Feed message types on the wire.
const (
	msgStatus   = "status"
	msgProjects = "projects"
)

// Backoff constants for the reconnect loop. Starts at initialBackoff,
// doubles on each consecutive failure, capped at maxBackoff, and resets
// once a connection delivers at least one message.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// maxLineBytes bounds a single feed line.
const maxLineBytes = 1 << 20

// FeedConfig configures the backend feed client.
type FeedConfig struct {
	// Addr is the host:port of the signalops push feed.
	Addr string
	// DialTimeout bounds each connection attempt. Zero means 10s.
	DialTimeout time.Duration
}

func (c FeedConfig) normalized() (FeedConfig, error) {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		return FeedConfig{}, fmt.Errorf("%w: feed address required", schema.ErrInvalidRequest)
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c, nil
}

// feedMessage is one line of the wire stream. Unknown types are skipped so
// the backend can grow the protocol without breaking older consoles.
type feedMessage struct {
	Type      string           `json:"type"`
	Connected bool             `json:"connected"`
	Projects  []schema.Project `json:"projects"`
}

// Feed owns the connection to the backend and is the only writer of
// connectivity and roster state. All messages are applied from a single
// goroutine, in arrival order.
type Feed struct {
	cfg   FeedConfig
	store core.Store
	log   pslog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeed builds a feed client for the given store.
func NewFeed(cfg FeedConfig, store core.Store, logger pslog.Logger) (*Feed, error) {
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: feed requires a store", schema.ErrInvalidRequest)
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Feed{
		cfg:   normalized,
		store: store,
		log:   logger.With("component", "feed").With("addr", normalized.Addr),
	}, nil
}

// Start launches the reconnect loop. It returns immediately; the loop runs
// until Stop or ctx cancellation.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return errors.New("feed already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx, f.done)
	return nil
}

// Stop terminates the loop and waits for it to exit.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	done := f.done
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (f *Feed) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	f.log.Info("feed loop start")
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			f.log.Info("feed loop stop")
			return
		}
		dialer := net.Dialer{Timeout: f.cfg.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", f.cfg.Addr)
		if err != nil {
			if ctx.Err() != nil {
				f.log.Info("feed loop stop")
				return
			}
			f.log.Warn("feed dial failed", "err", err, "backoff", backoff)
			if !sleepCtx(ctx, backoff) {
				f.log.Info("feed loop stop")
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		f.log.Info("feed connected")
		applied := f.consume(ctx, conn)
		_ = conn.Close()
		f.markDisconnected(ctx)
		if ctx.Err() != nil {
			f.log.Info("feed loop stop")
			return
		}
		if applied > 0 {
			backoff = initialBackoff
		}
		f.log.Warn("feed disconnected", "applied", applied, "backoff", backoff)
		if !sleepCtx(ctx, backoff) {
			f.log.Info("feed loop stop")
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// consume reads the stream until error or cancellation and returns the
// number of messages applied to the store.
func (f *Feed) consume(ctx context.Context, conn net.Conn) int {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	applied := 0
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if f.apply(ctx, line) {
			applied++
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		f.log.Warn("feed stream error", "err", err)
	}
	return applied
}

// apply decodes and applies one feed line. Malformed or unknown lines are
// logged and skipped without dropping the connection.
func (f *Feed) apply(ctx context.Context, line string) bool {
	var msg feedMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		f.log.Warn("feed message malformed", "err", err, "len", len(line))
		return false
	}
	switch msg.Type {
	case msgStatus:
		resp, err := f.store.SetConnected(ctx, schema.SetConnectedRequest{Connected: msg.Connected})
		if err != nil {
			f.log.Warn("feed status apply failed", "err", err)
			return false
		}
		f.log.Debug("feed status applied", "connected", msg.Connected, "changed", resp.Changed)
		return true
	case msgProjects:
		resp, err := f.store.ReplaceProjects(ctx, schema.ReplaceProjectsRequest{Projects: msg.Projects})
		if err != nil {
			f.log.Warn("feed roster rejected", "err", err, "count", len(msg.Projects))
			return false
		}
		f.log.Debug("feed roster applied", "count", len(resp.State.Projects), "selection_cleared", resp.SelectionCleared)
		return true
	default:
		f.log.Trace("feed message skipped", "type", msg.Type)
		return false
	}
}

// markDisconnected flips the store's connectivity flag when the stream
// drops. The base context may already be cancelled at shutdown; the flag
// still flips so late snapshots do not claim a live backend.
func (f *Feed) markDisconnected(ctx context.Context) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if _, err := f.store.SetConnected(ctx, schema.SetConnectedRequest{Connected: false}); err != nil && !errors.Is(err, schema.ErrStoreClosed) {
		f.log.Warn("feed disconnect flag failed", "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}
