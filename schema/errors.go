package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidUser indicates an invalid user identifier.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidProject indicates an invalid project identifier.
	ErrInvalidProject = errors.New("invalid project")
	// ErrInvalidSelection indicates the requested project id is not in the roster.
	ErrInvalidSelection = errors.New("project not in roster")
	// ErrInvalidRoster indicates a pushed roster violated the uniqueness invariant.
	ErrInvalidRoster = errors.New("invalid roster")
	// ErrStoreClosed indicates the store has been torn down.
	ErrStoreClosed = errors.New("store closed")
	// ErrInvalidTheme indicates an unsupported theme name.
	ErrInvalidTheme = errors.New("invalid theme")
)
