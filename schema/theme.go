package schema

import "strings"

// DefaultTheme is the default console theme name.
const DefaultTheme ThemeName = "signal"

var themeNames = []ThemeName{
	"signal",
	"mono",
	"amber",
}

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	out := make([]ThemeName, len(themeNames))
	copy(out, themeNames)
	return out
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case "signal", "default":
		return "signal", true
	case "mono", "plain":
		return "mono", true
	case "amber":
		return "amber", true
	default:
		return "", false
	}
}
