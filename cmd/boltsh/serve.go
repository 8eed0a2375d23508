package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/config"
	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the boltshell HTTP and WebSocket server",
		Long:  "Configuration comes from the environment (PORT, SHELL_COMMAND, LOG_LEVEL, ...). Flags override it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Server.Port = port
			}
			if profile, _ := cmd.Flags().GetString("profile"); profile != "" {
				p, err := config.LoadProfile(profile)
				if err != nil {
					return err
				}
				p.Apply(&cfg.Shell)
			}

			srv, err := server.NewServer(cfg)
			if err != nil {
				return err
			}

			if err := srv.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("port", "", "Listen port, overrides PORT")
	cmd.Flags().String("profile", "", "Shell profile file (.yaml or .toml), overrides SHELL_PROFILE")
	return cmd
}
