package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/logging"
)

const Version = "0.3.0"

// colorEnv overrides terminal color detection for preview: truecolor, 256, 16, none.
const colorEnv = "PROMPTBUFFER_COLOR"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "promptbuffer",
		Short:         "Shell prompt renderer that never blocks on slow plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRenderCmd(),
		newDaemonCmd(),
		newStatusCmd(),
		newPreviewCmd(),
		newInitCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptbuffer v%s\n", Version)
		},
	}
}

// logConfig maps the [logs] section onto the logging package. Logging stays
// off unless debug is set, since render runs on every prompt.
func logConfig(cfg *config.Config) logging.Config {
	dir, _ := config.Dir()
	ls := cfg.Logs
	lc := logging.Config{
		Level:      ls.Level,
		Format:     ls.Format,
		MaxSizeMB:  ls.MaxSizeMB,
		MaxBackups: ls.MaxBackups,
		MaxAgeDays: ls.MaxAgeDays,
		Compress:   ls.Compress,
		PprofAddr:  ls.Pprof,
		Debug:      ls.Debug,
	}
	if ls.Debug {
		lc.LogDir = dir
	}
	return lc
}

// initColorProfile configures lipgloss for the preview.
func initColorProfile() {
	switch strings.ToLower(os.Getenv(colorEnv)) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		lipgloss.SetColorProfile(termenv.ColorProfile())
	}
}
