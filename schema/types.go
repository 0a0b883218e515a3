package schema

// UserID identifies an operator account.
type UserID string

// ProjectID identifies a project known to signalops.
type ProjectID string

// ProjectName is the user-facing label of a project.
type ProjectName string

// ThemeName identifies a console theme.
type ThemeName string

// Project is a unit of work the console can target.
type Project struct {
	ID   ProjectID   `json:"id"`
	Name ProjectName `json:"name"`
}
