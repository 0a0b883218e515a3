package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/internal/appconfig"
	"pkt.systems/sigdeck/internal/auth"
	"pkt.systems/sigdeck/sshserver"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var feedTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run sigdeck diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			if err := checkStateDir(cfg.StateDir); err != nil {
				return err
			}
			logger.Info("doctor state dir ok", "path", cfg.StateDir)

			store, err := auth.NewStore(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
			if err != nil {
				return fmt.Errorf("user file: %w", err)
			}
			logger.Info("doctor user file ok", "path", cfg.Auth.UserFile, "users", len(store.Users()))

			if _, err := sshserver.EnsureHostKey(cfg.SSH.HostKeyPath); err != nil {
				return fmt.Errorf("ssh host key: %w", err)
			}
			logger.Info("doctor ssh host key ok", "path", cfg.SSH.HostKeyPath)

			for name, addr := range map[string]string{
				"http.addr": cfg.HTTP.Addr,
				"ssh.addr":  cfg.SSH.Addr,
			} {
				if _, _, err := net.SplitHostPort(addr); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			logger.Info("doctor listen addrs ok", "http", cfg.HTTP.Addr, "ssh", cfg.SSH.Addr)

			// The feed being down is not fatal; serve reconnects on its own.
			conn, err := net.DialTimeout("tcp", cfg.Feed.Addr, feedTimeout)
			if err != nil {
				logger.Warn("doctor feed unreachable", "addr", cfg.Feed.Addr, "err", err)
			} else {
				_ = conn.Close()
				logger.Info("doctor feed reachable", "addr", cfg.Feed.Addr)
			}

			logger.Info("doctor ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().DurationVar(&feedTimeout, "feed-timeout", 3*time.Second, "feed reachability check timeout")
	return cmd
}

func checkStateDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("state_dir is required")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}
	probe := filepath.Join(path, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("state dir not writable: %w", err)
	}
	return os.Remove(probe)
}
