package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/internal/logx"
	"pkt.systems/sigdeck/schema"
)

// store implements the console state store.
type store struct {
	cfg    schema.StoreConfig
	sink   EventSink
	logger pslog.Logger

	mu        sync.Mutex
	connected bool
	projects  []schema.Project
	index     map[schema.ProjectID]int
	active    schema.ProjectID
	theme     schema.ThemeName
	notice    string
	noticeGen uint64
	noticeT   *time.Timer
	activity  *activityLog
	closed    bool
}

// NewStore constructs the console state store.
func NewStore(cfg schema.StoreConfig, deps StoreDeps) (Store, error) {
	normalized, err := schema.NormalizeStoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &store{
		cfg:      cfg,
		sink:     deps.EventSink,
		logger:   logger,
		index:    make(map[schema.ProjectID]int),
		theme:    cfg.DefaultTheme,
		activity: newActivityLog(cfg.ActivityMaxLines),
	}, nil
}

func (s *store) SetConnected(ctx context.Context, req schema.SetConnectedRequest) (schema.SetConnectedResponse, error) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.SetConnectedResponse{}, schema.ErrStoreClosed
	}
	if s.connected == req.Connected {
		state := s.snapshotLocked()
		s.mu.Unlock()
		log.Trace("store connectivity unchanged", "connected", req.Connected)
		return schema.SetConnectedResponse{Changed: false, State: state}, nil
	}
	s.connected = req.Connected
	if req.Connected {
		s.activity.Append("backend connected")
	} else {
		s.activity.Append("backend disconnected")
	}
	event := schema.StateEvent{Type: schema.StateEventConnection, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	log.Info("store connectivity changed", "connected", req.Connected)
	return schema.SetConnectedResponse{Changed: true, State: event.State}, nil
}

func (s *store) ReplaceProjects(ctx context.Context, req schema.ReplaceProjectsRequest) (schema.ReplaceProjectsResponse, error) {
	log := logx.Ctx(ctx)
	roster, err := schema.NormalizeRoster(req.Projects)
	if err != nil {
		log.Warn("store roster rejected", "err", err, "count", len(req.Projects))
		return schema.ReplaceProjectsResponse{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.ReplaceProjectsResponse{}, schema.ErrStoreClosed
	}
	s.projects = roster
	s.index = make(map[schema.ProjectID]int, len(roster))
	for i, project := range roster {
		s.index[project.ID] = i
	}
	cleared := false
	if s.active != "" {
		if _, ok := s.index[s.active]; !ok {
			s.activity.Append(fmt.Sprintf("active project %s dropped from roster", s.active))
			s.active = ""
			cleared = true
		}
	}
	s.activity.Append(fmt.Sprintf("roster replaced (%d projects)", len(roster)))
	event := schema.StateEvent{Type: schema.StateEventRoster, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	log.Info("store roster replaced", "count", len(roster), "selection_cleared", cleared)
	return schema.ReplaceProjectsResponse{State: event.State, SelectionCleared: cleared}, nil
}

func (s *store) SelectProject(ctx context.Context, req schema.SelectProjectRequest) (schema.SelectProjectResponse, error) {
	log := logx.WithUser(ctx, req.UserID).With("project", req.ProjectID)
	if err := schema.ValidateProjectID(req.ProjectID); err != nil {
		log.Warn("store select rejected", "err", err)
		return schema.SelectProjectResponse{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.SelectProjectResponse{}, schema.ErrStoreClosed
	}
	if _, ok := s.index[req.ProjectID]; !ok {
		state := s.snapshotLocked()
		s.mu.Unlock()
		log.Warn("store select rejected", "err", schema.ErrInvalidSelection)
		return schema.SelectProjectResponse{State: state}, schema.ErrInvalidSelection
	}
	if s.active == req.ProjectID {
		state := s.snapshotLocked()
		s.mu.Unlock()
		log.Debug("store select noop", "reason", "already active")
		return schema.SelectProjectResponse{State: state}, nil
	}
	s.active = req.ProjectID
	s.activity.Append(fmt.Sprintf("active project set to %s", req.ProjectID))
	event := schema.StateEvent{Type: schema.StateEventSelection, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	log.Info("store project selected")
	return schema.SelectProjectResponse{State: event.State}, nil
}

func (s *store) ClearSelection(ctx context.Context, req schema.ClearSelectionRequest) (schema.ClearSelectionResponse, error) {
	log := logx.WithUser(ctx, req.UserID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.ClearSelectionResponse{}, schema.ErrStoreClosed
	}
	if s.active == "" {
		state := s.snapshotLocked()
		s.mu.Unlock()
		log.Debug("store clear noop", "reason", "no selection")
		return schema.ClearSelectionResponse{State: state}, nil
	}
	s.activity.Append(fmt.Sprintf("selection cleared (was %s)", s.active))
	s.active = ""
	event := schema.StateEvent{Type: schema.StateEventSelection, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	log.Info("store selection cleared")
	return schema.ClearSelectionResponse{State: event.State}, nil
}

func (s *store) GetState(ctx context.Context, req schema.GetStateRequest) (schema.GetStateResponse, error) {
	_ = req
	s.mu.Lock()
	state := s.snapshotLocked()
	s.mu.Unlock()
	logx.Ctx(ctx).Trace("store state snapshot", "projects", len(state.Projects), "connected", state.Connected)
	return schema.GetStateResponse{State: state}, nil
}

func (s *store) SetNotice(ctx context.Context, req schema.SetNoticeRequest) (schema.SetNoticeResponse, error) {
	log := logx.WithUser(ctx, req.UserID)
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return schema.SetNoticeResponse{}, schema.ErrInvalidRequest
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.SetNoticeResponse{}, schema.ErrStoreClosed
	}
	if s.noticeT != nil {
		s.noticeT.Stop()
	}
	s.notice = text
	s.noticeGen++
	gen := s.noticeGen
	s.noticeT = time.AfterFunc(s.cfg.NoticeTTL, func() { s.clearNotice(gen) })
	event := schema.StateEvent{Type: schema.StateEventNotice, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	log.Debug("store notice set", "len", len(text))
	return schema.SetNoticeResponse{State: event.State}, nil
}

// clearNotice resets the transient notice when the timer for generation gen
// fires. A stale timer (superseded by a newer notice or Close) is ignored.
func (s *store) clearNotice(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.noticeGen || s.notice == "" {
		s.mu.Unlock()
		return
	}
	s.notice = ""
	s.noticeT = nil
	event := schema.StateEvent{Type: schema.StateEventNotice, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	s.logger.Trace("store notice cleared")
}

func (s *store) SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error) {
	log := logx.WithUser(ctx, req.UserID)
	theme, ok := schema.NormalizeThemeName(string(req.Theme))
	if !ok {
		return schema.SetThemeResponse{}, schema.ErrInvalidTheme
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.SetThemeResponse{}, schema.ErrStoreClosed
	}
	if s.theme == theme {
		s.mu.Unlock()
		return schema.SetThemeResponse{Theme: theme}, nil
	}
	s.theme = theme
	event := schema.StateEvent{Type: schema.StateEventTheme, State: s.snapshotLocked()}
	s.mu.Unlock()

	s.emit(event)
	log.Info("store theme updated", "theme", theme)
	return schema.SetThemeResponse{Theme: theme}, nil
}

func (s *store) GetActivity(ctx context.Context, req schema.GetActivityRequest) (schema.GetActivityResponse, error) {
	s.mu.Lock()
	view := s.activity.Snapshot(req.Limit)
	s.mu.Unlock()
	logx.Ctx(ctx).Trace("store activity snapshot", "lines", len(view.Lines), "total", view.TotalLines)
	return schema.GetActivityResponse{Activity: view}, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.noticeGen++
	if s.noticeT != nil {
		s.noticeT.Stop()
		s.noticeT = nil
	}
	s.mu.Unlock()
	s.logger.Debug("store closed")
	return nil
}

// snapshotLocked builds an immutable view; the caller holds s.mu.
func (s *store) snapshotLocked() schema.StateSnapshot {
	projects := make([]schema.Project, len(s.projects))
	copy(projects, s.projects)
	return schema.StateSnapshot{
		Connected:     s.connected,
		Projects:      projects,
		ActiveProject: s.active,
		Notice:        s.notice,
		Theme:         s.theme,
	}
}

func (s *store) emit(event schema.StateEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnStateEvent(event)
}
