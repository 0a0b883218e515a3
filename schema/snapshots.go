package schema

// StateSnapshot is an immutable point-in-time view of console state for
// transports. Projects is a copy; mutating it does not affect the store.
type StateSnapshot struct {
	Connected     bool      `json:"connected"`
	Projects      []Project `json:"projects"`
	ActiveProject ProjectID `json:"active_project,omitempty"`
	Notice        string    `json:"notice,omitempty"`
	Theme         ThemeName `json:"theme,omitempty"`
}

// ActivitySnapshot represents the recent state-transition log.
type ActivitySnapshot struct {
	Lines      []string `json:"lines"`
	TotalLines int      `json:"total_lines"`
}
