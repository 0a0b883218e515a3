package core

import (
	"context"

	"pkt.systems/sigdeck/schema"
)

// Store is the transport-agnostic API over console state: backend
// connectivity, the project roster, and the active selection. It is the
// single source of truth between the signalops feed and the dashboard
// shells.
type Store interface {
	// SetConnected records a connectivity push. Calling it with the current
	// value is a no-op that emits nothing.
	SetConnected(ctx context.Context, req schema.SetConnectedRequest) (schema.SetConnectedResponse, error)
	// ReplaceProjects swaps the roster. Rosters with duplicate or invalid
	// ids are rejected with schema.ErrInvalidRoster and leave state
	// untouched. If the active project is absent from the new roster the
	// selection is cleared.
	ReplaceProjects(ctx context.Context, req schema.ReplaceProjectsRequest) (schema.ReplaceProjectsResponse, error)
	// SelectProject switches the active project. Unknown ids fail with
	// schema.ErrInvalidSelection; selecting the already-active project
	// succeeds without emitting.
	SelectProject(ctx context.Context, req schema.SelectProjectRequest) (schema.SelectProjectResponse, error)
	// ClearSelection returns to "no project selected".
	ClearSelection(ctx context.Context, req schema.ClearSelectionRequest) (schema.ClearSelectionResponse, error)
	// GetState returns an immutable snapshot for initial render or polling.
	GetState(ctx context.Context, req schema.GetStateRequest) (schema.GetStateResponse, error)
	// SetNotice shows a transient notice that the store clears on its own
	// after the configured TTL.
	SetNotice(ctx context.Context, req schema.SetNoticeRequest) (schema.SetNoticeResponse, error)
	// SetTheme switches the console theme.
	SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error)
	// GetActivity returns the recent state-transition log.
	GetActivity(ctx context.Context, req schema.GetActivityRequest) (schema.GetActivityResponse, error)
	// Close tears the store down: the pending notice timer is canceled and
	// further mutations fail with schema.ErrStoreClosed.
	Close() error
}
