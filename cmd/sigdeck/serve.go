package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck"
	"pkt.systems/sigdeck/httpapi"
	"pkt.systems/sigdeck/internal/appconfig"
	"pkt.systems/sigdeck/schema"
	"pkt.systems/sigdeck/sshserver"
	"pkt.systems/sigdeck/transport"
)

//go:embed assets/LOGO.txt
var serveLogo string

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noBanner bool
	var noSSH bool
	var noFeed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start sigdeck servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner && serveLogo != "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveLogo)
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
				return fmt.Errorf("state dir: %w", err)
			}

			serverCfg := sigdeck.ServerConfig{
				Store: toStoreConfig(cfg.UI),
				Feed:  toFeedConfig(cfg.Feed),
				HTTP:  toHTTPConfig(cfg.HTTP),
				SSH:   toSSHConfig(cfg.SSH),
				Auth:  toAuthConfig(cfg.Auth),
			}
			opts := []sigdeck.ServerOption{sigdeck.WithHTTP()}
			if !noSSH {
				opts = append(opts, sigdeck.WithSSH())
			}
			if !noFeed {
				opts = append(opts, sigdeck.WithFeed())
			}
			server, err := sigdeck.New(serverCfg, sigdeck.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if !noSSH {
				logger.Info("ssh server listening", "addr", serverCfg.SSH.Addr)
			}
			if !noFeed {
				logger.Info("feed consumer starting", "addr", serverCfg.Feed.Addr)
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable startup banner")
	cmd.Flags().BoolVar(&noSSH, "no-ssh", false, "disable the SSH console server")
	cmd.Flags().BoolVar(&noFeed, "no-feed", false, "disable the signalops feed consumer")
	return cmd
}

func toStoreConfig(cfg appconfig.UIConfig) schema.StoreConfig {
	return schema.StoreConfig{
		DefaultTheme:     schema.ThemeName(cfg.DefaultTheme),
		NoticeTTL:        time.Duration(cfg.NoticeTTLSeconds) * time.Second,
		ActivityMaxLines: cfg.ActivityMaxLines,
	}
}

func toFeedConfig(cfg appconfig.FeedConfig) transport.FeedConfig {
	return transport.FeedConfig{
		Addr:        cfg.Addr,
		DialTimeout: time.Duration(cfg.DialTimeoutSeconds) * time.Second,
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:            cfg.Addr,
		SessionCookie:   cfg.SessionCookie,
		SessionTTLHours: cfg.SessionTTLHours,
		BaseURL:         cfg.BaseURL,
		BasePath:        cfg.BasePath,
		StreamHistory:   cfg.StreamHistory,
	}
}

func toSSHConfig(cfg appconfig.SSHConfig) sshserver.Config {
	return sshserver.Config{
		Addr:        cfg.Addr,
		HostKeyPath: cfg.HostKeyPath,
	}
}

func toAuthConfig(cfg appconfig.AuthConfig) sigdeck.AuthConfig {
	return sigdeck.AuthConfig{
		UserFile:  cfg.UserFile,
		SeedUsers: cfg.SeedUsers,
	}
}
