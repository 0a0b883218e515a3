// Package appconfig loads and validates the sigdeck YAML configuration.
package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/sigdeck/internal/auth"
	"pkt.systems/sigdeck/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Feed          FeedConfig    `mapstructure:"feed" yaml:"feed"`
	UI            UIConfig      `mapstructure:"ui" yaml:"ui"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Auth          AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// FeedConfig points at the signalops push feed.
type FeedConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
}

// UIConfig controls console presentation defaults.
type UIConfig struct {
	DefaultTheme     string `mapstructure:"default_theme" yaml:"default_theme"`
	NoticeTTLSeconds int    `mapstructure:"notice_ttl_seconds" yaml:"notice_ttl_seconds"`
	ActivityMaxLines int    `mapstructure:"activity_max_lines" yaml:"activity_max_lines"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	SessionCookie   string `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	BasePath        string `mapstructure:"base_path" yaml:"base_path"`
	StreamHistory   int    `mapstructure:"stream_history" yaml:"stream_history"`
}

// SSHConfig configures the SSH console server.
type SSHConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`
}

// AuthConfig configures auth storage and seed users.
type AuthConfig struct {
	UserFile  string          `mapstructure:"user_file" yaml:"user_file"`
	SeedUsers []auth.SeedUser `mapstructure:"seed_users" yaml:"seed_users"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".sigdeck", "state"),
		Feed: FeedConfig{
			Addr:               "127.0.0.1:9710",
			DialTimeoutSeconds: 10,
		},
		UI: UIConfig{
			DefaultTheme:     string(schema.DefaultTheme),
			NoticeTTLSeconds: int(schema.DefaultNoticeTTL.Seconds()),
			ActivityMaxLines: schema.DefaultActivityMaxLines,
		},
		HTTP: HTTPConfig{
			Addr:            ":27580",
			SessionCookie:   "sigdeck_session",
			SessionTTLHours: 720,
			BaseURL:         "",
			BasePath:        "",
			StreamHistory:   256,
		},
		SSH: SSHConfig{
			Addr:        ":27522",
			HostKeyPath: filepath.Join(home, ".sigdeck", "ssh_host_key"),
		},
		Auth: AuthConfig{
			UserFile: filepath.Join(home, ".sigdeck", "users.json"),
			SeedUsers: []auth.SeedUser{
				{
					Username:     "admin",
					PasswordHash: "$2a$12$PyjGUD8qnJie1MULQVHJdu9zuS/juh5W5RtDUVHv5HFb.62gNnY/q",
					TOTPSecret:   "JBSWY3DPEHPK3PXP",
				},
			},
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sigdeck", "config.yaml"), nil
}
