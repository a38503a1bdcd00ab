package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/plugins"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage config.toml",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write an example config.toml if none exists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := config.CreateExampleConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config.toml location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := config.Path()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate config.toml",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Reload()
				if err != nil {
					return err
				}
				if err := cfg.Validate(plugins.Names()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "config ok")
				return nil
			},
		},
	)
	return cmd
}
