package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/daemon"
	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/platform"
)

var daemonLog = logging.ForComponent(logging.CompDaemon)

func newDaemonCmd() *cobra.Command {
	var (
		socket  string
		metrics string
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Serve prompts from long-lived workers over a unix socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: using defaults:", err)
			}
			if socket != "" {
				cfg.Daemon.Socket = socket
			}
			if metrics != "" {
				cfg.Daemon.MetricsAddr = metrics
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "socket path (default from config)")
	cmd.Flags().StringVar(&metrics, "metrics-addr", "", "serve prometheus /metrics on this address")
	return cmd
}

func runDaemon(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	socketPath, err := cfg.SocketPath()
	if err != nil {
		return err
	}

	lc := logConfig(cfg)
	lc.LogDir = dir
	logging.Init(lc)
	defer logging.Shutdown()
	log.SetOutput(logging.NewBridgeWriter(logging.CompDaemon))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go dumpOnSignal(ctx, dir)

	server := daemon.NewServer(cfg, socketPath, daemon.NewMetrics())

	if cfgPath, err := config.Path(); err == nil {
		if warning := platform.CheckFsnotifySupport(cfgPath); warning != "" {
			daemonLog.Warn("config_watch_unreliable", slog.String("detail", warning))
			fmt.Fprintln(os.Stderr, "Warning:", warning)
		}
		watcher, err := config.NewWatcher(cfgPath, func(next *config.Config, err error) {
			if err != nil {
				daemonLog.Warn("config_reload_failed", slog.String("error", err.Error()))
				return
			}
			if err := server.Reconfigure(next); err != nil {
				daemonLog.Warn("config_rejected", slog.String("error", err.Error()))
			}
		})
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			daemonLog.Warn("config_watch_failed", slog.String("error", err.Error()))
		} else {
			defer watcher.Stop()
		}
	}

	daemonLog.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", socketPath),
		slog.String("platform", platform.Detect().String()))

	err = server.Run(ctx)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return fmt.Errorf("daemon already running on %s", socketPath)
	}
	return err
}

// dumpOnSignal writes the log ring buffer to the state dir on SIGUSR1.
func dumpOnSignal(ctx context.Context, dir string) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-usr1:
			dumpPath := filepath.Join(dir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				daemonLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				daemonLog.Info("crash_dump_written", slog.String("path", dumpPath))
			}
		}
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := config.Load()
			socket, err := cfg.SocketPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			stats, err := daemon.Client{SocketPath: socket}.Stats()
			if err != nil {
				fmt.Fprintf(out, "daemon: not running (%s)\n", socket)
				return nil
			}
			writeStatus(out, stats)
			return nil
		},
	}
}
