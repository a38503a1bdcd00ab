package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/plugins"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
	"github.com/asheshgoplani/promptbuffer/internal/supervisor"
	"github.com/asheshgoplani/promptbuffer/internal/ui"
)

func newPreviewCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "preview [path]",
		Short: "Watch the prompt for a directory re-render live",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path, err := targetPath(args)
			if err != nil {
				return err
			}
			factory, err := plugins.Factory(cfg, prompt.Raw(hostname()))
			if err != nil {
				return err
			}

			initColorProfile()
			sup := supervisor.New(factory, supervisor.OptionsFromConfig(cfg, nil))
			defer sup.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			var themes *ui.ThemeWatcher
			if cfg.GetTheme() == "system" {
				themes = ui.NewThemeWatcher(ctx)
				defer themes.Close()
			}

			model := ui.NewPreview(path, sup.Render, ui.Theme(cfg.ResolveTheme()), interval, themes)
			if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("preview: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", ui.DefaultInterval, "time between renders")
	return cmd
}
