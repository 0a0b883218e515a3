package schema

// StateEventType describes which part of console state changed.
type StateEventType string

const (
	// StateEventConnection indicates the backend link went up or down.
	StateEventConnection StateEventType = "connection"
	// StateEventRoster indicates the project roster was replaced.
	StateEventRoster StateEventType = "roster"
	// StateEventSelection indicates the active project changed.
	StateEventSelection StateEventType = "selection"
	// StateEventNotice indicates a transient notice was set or cleared.
	StateEventNotice StateEventType = "notice"
	// StateEventTheme indicates the console theme changed.
	StateEventTheme StateEventType = "theme"
)

// StateEvent carries a complete snapshot taken at the moment of the change,
// so consumers never observe a partially updated view.
type StateEvent struct {
	Type  StateEventType
	State StateSnapshot
}
