package schema

import (
	"fmt"
	"strings"
)

// ValidateProjectID ensures a project id matches [a-z0-9._-] with no
// surrounding whitespace.
func ValidateProjectID(id ProjectID) error {
	raw := string(id)
	if raw == "" {
		return ErrInvalidProject
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidProject
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidProject
	}
	return nil
}

// ValidateUserID ensures a user id matches [a-z0-9._-] with no normalization.
func ValidateUserID(userID UserID) error {
	raw := string(userID)
	if raw == "" {
		return ErrInvalidUser
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidUser
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidUser
	}
	return nil
}

// NormalizeRoster validates a pushed roster: every id must be valid and
// unique, every name non-blank (a blank name falls back to the id). Order is
// preserved. Returns a copy so the caller's slice stays unshared.
func NormalizeRoster(projects []Project) ([]Project, error) {
	out := make([]Project, 0, len(projects))
	seen := make(map[ProjectID]struct{}, len(projects))
	for _, project := range projects {
		if err := ValidateProjectID(project.ID); err != nil {
			return nil, fmt.Errorf("%w: project id %q", ErrInvalidRoster, project.ID)
		}
		if _, dup := seen[project.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate project id %q", ErrInvalidRoster, project.ID)
		}
		seen[project.ID] = struct{}{}
		if strings.TrimSpace(string(project.Name)) == "" {
			project.Name = ProjectName(project.ID)
		}
		out = append(out, project)
	}
	return out, nil
}
