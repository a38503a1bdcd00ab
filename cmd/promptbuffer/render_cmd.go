package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/daemon"
	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/plugins"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
	"github.com/asheshgoplani/promptbuffer/internal/supervisor"
)

var cliLog = logging.ForComponent(logging.CompUI)

func newRenderCmd() *cobra.Command {
	var (
		shell    string
		noDaemon bool
	)
	cmd := &cobra.Command{
		Use:   "render [path]",
		Short: "Print the prompt for a directory",
		Long: `Print the prompt for path (default: the working directory) with no
trailing newline. The daemon answers when it is running; otherwise the
prompt is rendered in-process. This command always exits 0 so the shell
always gets a prompt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			logging.Init(logConfig(cfg))
			defer logging.Shutdown()

			path, err := targetPath(args)
			if err != nil {
				cliLog.Warn("render_path_failed", slog.String("error", err.Error()))
			}
			tty := term.IsTerminal(int(os.Stdout.Fd()))
			dialect := chooseDialect(shell, cfg, tty)
			printPrompt(cmd.OutOrStdout(), renderPrompt(cfg, path, dialect, !noDaemon), tty)
			return nil
		},
	}
	cmd.Flags().StringVarP(&shell, "shell", "s", "", "escape dialect: bash, zsh or raw (default from config)")
	cmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "render in-process even when the daemon is running")
	return cmd
}

// targetPath resolves the optional path argument to an absolute directory.
// On failure it still returns something renderable.
func targetPath(args []string) (string, error) {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, err
	}
	return abs, nil
}

// chooseDialect picks the explicit flag, then raw for a terminal, then the
// configured dialect.
func chooseDialect(flag string, cfg *config.Config, tty bool) string {
	switch {
	case flag != "":
		return flag
	case tty:
		return "raw"
	default:
		return cfg.GetDialect()
	}
}

// renderPrompt never fails: each stage falls back to a cheaper one and the
// last resort is the header and marker alone.
func renderPrompt(cfg *config.Config, path, dialect string, useDaemon bool) string {
	if useDaemon {
		if text, ok := renderRemote(cfg, path, dialect); ok {
			return text
		}
	}

	d, err := prompt.DialectByName(dialect)
	if err != nil {
		cliLog.Warn("render_dialect_unknown", slog.String("dialect", dialect))
		d = prompt.Bash
	}
	factory, err := plugins.Factory(cfg, d)
	if err != nil {
		cliLog.Warn("render_config_invalid", slog.String("error", err.Error()))
		return prompt.Renderer{Dialect: d, Path: path}.Render(nil)
	}

	sup := supervisor.New(factory, supervisor.OptionsFromConfig(cfg, nil))
	defer sup.Close()
	text, err := sup.Render(path)
	if err == nil {
		return text
	}
	cliLog.Warn("render_failed", slog.String("path", path), slog.String("error", err.Error()))
	if text, err := supervisor.FastRender(factory, path); err == nil {
		return text
	}
	return prompt.Renderer{Dialect: d, Path: path}.Render(nil)
}

func renderRemote(cfg *config.Config, path, dialect string) (string, bool) {
	socket, err := cfg.SocketPath()
	if err != nil {
		return "", false
	}
	text, err := daemon.Client{SocketPath: socket}.Render(path, dialect)
	var remote *daemon.RemoteError
	switch {
	case err == nil:
		return text, true
	case errors.As(err, &remote) && text != "":
		cliLog.Warn("daemon_render_degraded", slog.String("error", remote.Message))
		return text, true
	default:
		cliLog.Debug("daemon_unavailable", slog.String("error", err.Error()))
		return "", false
	}
}

// printPrompt writes text followed by a newline when out is a terminal.
func printPrompt(out io.Writer, text string, tty bool) {
	fmt.Fprint(out, text)
	if tty {
		fmt.Fprintln(out)
	}
}
