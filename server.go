package sigdeck

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/httpapi"
	"pkt.systems/sigdeck/internal/auth"
	"pkt.systems/sigdeck/internal/eventbus"
	"pkt.systems/sigdeck/internal/watch"
	"pkt.systems/sigdeck/schema"
	"pkt.systems/sigdeck/sshserver"
	"pkt.systems/sigdeck/transport"
)

// Server composes the feed consumer with the HTTP and SSH frontends.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Watch registers a listener for state events. The returned cancel
	// func is idempotent.
	Watch(fn watch.Listener) func()
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Store schema.StoreConfig
	Feed  transport.FeedConfig
	HTTP  httpapi.Config
	SSH   sshserver.Config
	Auth  AuthConfig
}

// AuthConfig defines authentication storage settings.
type AuthConfig struct {
	UserFile  string
	SeedUsers []auth.SeedUser
}

// ServerDeps captures optional dependencies.
type ServerDeps struct {
	Logger pslog.Logger
	// EventSink receives every state event in addition to the built-in
	// HTTP hub and SSH event bus.
	EventSink core.EventSink
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSSH  bool
	enableFeed bool
}

// WithHTTP enables the HTTP API/dashboard server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSSH enables the SSH console server.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.enableSSH = true }
}

// WithFeed enables the signalops feed consumer.
func WithFeed() ServerOption {
	return func(o *serverOptions) { o.enableFeed = true }
}

// New constructs a composable sigdeck server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableSSH && !options.enableFeed {
		return nil, errors.New("no services enabled")
	}

	var hub *httpapi.Hub
	var bus *eventbus.Bus
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HTTP.StreamHistory)
	}
	if options.enableSSH {
		bus = eventbus.New(deps.Logger)
	}

	watchers := watch.New(deps.Logger)

	sinks := make([]core.EventSink, 0, 4)
	sinks = append(sinks, watchers)
	if deps.EventSink != nil {
		sinks = append(sinks, deps.EventSink)
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	var sink core.EventSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = eventFanout{sinks: sinks}
	}

	store, err := core.NewStore(cfg.Store, core.StoreDeps{
		EventSink: sink,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	var feed *transport.Feed
	if options.enableFeed {
		feed, err = transport.NewFeed(cfg.Feed, store, deps.Logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	var authStore *auth.Store
	var httpSrv *httpapi.Server
	var sshSrv *sshserver.Server
	if options.enableHTTP || options.enableSSH {
		authStore, err = auth.NewStore(cfg.Auth.UserFile, cfg.Auth.SeedUsers, deps.Logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if options.enableHTTP {
			httpSrv = httpapi.NewServer(cfg.HTTP, store, authStore, hub)
		}
		if options.enableSSH {
			sshSrv = &sshserver.Server{
				Addr:        cfg.SSH.Addr,
				HostKeyPath: cfg.SSH.HostKeyPath,
				Prompt:      cfg.SSH.Prompt,
				Store:       store,
				AuthStore:   authStore,
				EventBus:    bus,
			}
		}
	}

	return &compositeServer{
		cfg:      cfg,
		options:  options,
		store:    store,
		feed:     feed,
		httpSrv:  httpSrv,
		sshSrv:   sshSrv,
		watchers: watchers,
	}, nil
}

type compositeServer struct {
	cfg      ServerConfig
	options  serverOptions
	store    core.Store
	feed     *transport.Feed
	httpSrv  *httpapi.Server
	sshSrv   *sshserver.Server
	watchers *watch.Registry
	logger   pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 3)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"ssh", s.options.enableSSH,
		"feed", s.options.enableFeed,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"ssh_addr", s.cfg.SSH.Addr,
		"feed_addr", s.cfg.Feed.Addr,
	)
	if s.options.enableFeed && s.feed != nil {
		if err := s.feed.Start(s.ctx); err != nil {
			log.Error("feed start failed", "err", err)
			return err
		}
	}
	if s.options.enableHTTP && s.httpSrv != nil {
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.options.enableSSH && s.sshSrv != nil {
		go func() {
			if err := s.sshSrv.ListenAndServe(s.ctx); err != nil {
				log.Error("ssh server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Watch(fn watch.Listener) func() {
	return s.watchers.Subscribe(fn)
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if s.feed != nil {
		s.feed.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if err := s.store.Close(); err != nil && !errors.Is(err, schema.ErrStoreClosed) {
		log.Warn("server store close failed", "err", err)
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
