package schema

// Connectivity.

// SetConnectedRequest describes a backend connectivity push.
type SetConnectedRequest struct {
	Connected bool
}

// SetConnectedResponse reports whether the flag changed.
type SetConnectedResponse struct {
	Changed bool
	State   StateSnapshot
}

// Roster.

// ReplaceProjectsRequest describes a roster push from the transport.
type ReplaceProjectsRequest struct {
	Projects []Project
}

// ReplaceProjectsResponse reports the state after the roster swap.
type ReplaceProjectsResponse struct {
	State StateSnapshot
	// SelectionCleared is true when the previously active project was not
	// present in the new roster.
	SelectionCleared bool
}

// Selection.

// SelectProjectRequest describes an operator's project switch.
type SelectProjectRequest struct {
	UserID    UserID
	ProjectID ProjectID
}

// SelectProjectResponse reports the state after selection.
type SelectProjectResponse struct {
	State StateSnapshot
}

// ClearSelectionRequest describes a return to "no project selected".
type ClearSelectionRequest struct {
	UserID UserID
}

// ClearSelectionResponse reports the state after clearing.
type ClearSelectionResponse struct {
	State StateSnapshot
}

// Snapshot.

// GetStateRequest describes a snapshot fetch.
type GetStateRequest struct{}

// GetStateResponse reports the current snapshot.
type GetStateResponse struct {
	State StateSnapshot
}

// Notice.

// SetNoticeRequest describes a transient console notice. The notice expires
// after the store's configured TTL.
type SetNoticeRequest struct {
	UserID UserID
	Text   string
}

// SetNoticeResponse reports the state after the notice was set.
type SetNoticeResponse struct {
	State StateSnapshot
}

// Theme.

// SetThemeRequest describes a console theme change.
type SetThemeRequest struct {
	UserID UserID
	Theme  ThemeName
}

// SetThemeResponse reports the applied theme.
type SetThemeResponse struct {
	Theme ThemeName
}

// Activity.

// GetActivityRequest describes an activity log fetch. Limit caps the number
// of most recent lines returned; zero means all retained lines.
type GetActivityRequest struct {
	Limit int
}

// GetActivityResponse reports the recent state transitions.
type GetActivityResponse struct {
	Activity ActivitySnapshot
}
