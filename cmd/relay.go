package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/teleflow/internal/config"
	"github.com/nextlevelbuilder/teleflow/internal/health"
	"github.com/nextlevelbuilder/teleflow/internal/session"
	"github.com/nextlevelbuilder/teleflow/internal/telemetry"
)

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the relay for all enabled accounts",
		Run: func(cmd *cobra.Command, args []string) {
			runRelay()
		},
	}
}

func runRelay() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Snapshot().Telemetry, slog.Default())
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	stores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	relayCfg := cfg.Snapshot().Relay
	manager := session.NewManager(stores, session.Options{
		AlbumWindow:   relayCfg.AlbumWindow(),
		RatePerMin:    relayCfg.RateLimitPerMin,
		DownloadDir:   config.ExpandHome(relayCfg.DownloadDir),
		MediaMaxBytes: relayCfg.MediaMaxBytes,
		Proxy:         relayCfg.Proxy,
		Logger:        slog.Default(),
	})

	// Rule and account changes land in the store and take effect per message;
	// the watcher only covers the tunables in the config file itself.
	if err := config.Watch(ctx, cfgPath, cfg, nil); err != nil {
		slog.Warn("config watch unavailable", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})

	if hc := cfg.Snapshot().Health; hc.Enabled {
		srv := health.NewServer(hc.Host, hc.Port, manager, slog.Default())
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("relay terminated", "error", err)
		os.Exit(1)
	}
	slog.Info("relay stopped")
}
