package schema

import (
	"errors"
	"time"
)

// StoreConfig defines defaults and limits for the console state store.
type StoreConfig struct {
	DefaultTheme ThemeName
	// NoticeTTL is how long a transient notice stays visible before the
	// store clears it.
	NoticeTTL time.Duration
	// ActivityMaxLines bounds the state-transition log.
	ActivityMaxLines int
}

// DefaultNoticeTTL is the default transient notice lifetime.
const DefaultNoticeTTL = 4 * time.Second

// DefaultActivityMaxLines is the default activity log limit.
const DefaultActivityMaxLines = 500

// NormalizeStoreConfig applies defaults and validates the config.
func NormalizeStoreConfig(cfg StoreConfig) (StoreConfig, error) {
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = DefaultTheme
	}
	if _, ok := NormalizeThemeName(string(cfg.DefaultTheme)); !ok {
		return StoreConfig{}, errors.New("unsupported default theme")
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = DefaultNoticeTTL
	}
	if cfg.ActivityMaxLines <= 0 {
		cfg.ActivityMaxLines = DefaultActivityMaxLines
	}
	return cfg, nil
}
