package sshserver

import "pkt.systems/sigdeck/schema"

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
)

// consoleTheme holds the ANSI color prefixes used by the line console.
type consoleTheme struct {
	Name   schema.ThemeName
	Accent string
	Meta   string
	Alert  string
}

var consoleThemes = map[schema.ThemeName]consoleTheme{
	"signal": {
		Name:   "signal",
		Accent: "\x1b[38;2;63;182;139m",
		Meta:   "\x1b[38;2;107;120;134m",
		Alert:  "\x1b[38;2;224;138;138m",
	},
	"mono": {
		Name:   "mono",
		Accent: ansiBold,
		Meta:   ansiDim,
		Alert:  ansiBold,
	},
	"amber": {
		Name:   "amber",
		Accent: "\x1b[38;2;255;176;0m",
		Meta:   "\x1b[38;2;148;112;60m",
		Alert:  "\x1b[38;2;255;120;80m",
	},
}

func themeFor(name schema.ThemeName) consoleTheme {
	if theme, ok := consoleThemes[name]; ok {
		return theme
	}
	return consoleThemes[schema.DefaultTheme]
}
