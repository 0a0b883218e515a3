package core

import "pkt.systems/sigdeck/schema"

// activityLog stores recent state-transition lines, oldest first, trimmed to
// maxLines.
type activityLog struct {
	lines    []string
	total    int
	maxLines int
}

func newActivityLog(maxLines int) *activityLog {
	if maxLines <= 0 {
		maxLines = schema.DefaultActivityMaxLines
	}
	return &activityLog{maxLines: maxLines}
}

// Append adds lines and trims to the retention limit.
func (a *activityLog) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	a.lines = append(a.lines, lines...)
	a.total += len(lines)
	if len(a.lines) > a.maxLines {
		trim := len(a.lines) - a.maxLines
		a.lines = a.lines[trim:]
	}
}

// Snapshot returns up to limit most recent lines; limit <= 0 returns all
// retained lines.
func (a *activityLog) Snapshot(limit int) schema.ActivitySnapshot {
	retained := len(a.lines)
	if limit <= 0 || limit > retained {
		limit = retained
	}
	lines := make([]string, limit)
	copy(lines, a.lines[retained-limit:])
	return schema.ActivitySnapshot{
		Lines:      lines,
		TotalLines: a.total,
	}
}
