// ABOUTME: Root cobra command and shared setup for every subcommand
// ABOUTME: Loads .env plus environment config and builds the slog logger

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/harper/calendar-mcp/pkg/config"
	"github.com/harper/calendar-mcp/pkg/logging"
	"github.com/harper/calendar-mcp/pkg/server"
)

// app carries what PersistentPreRunE prepared for the subcommands
type app struct {
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "calendar-mcp",
		Short: "Calendar events over the Model Context Protocol",
		Long: `calendar-mcp keeps a calendar of events and exposes it to AI assistants.

It can run as:
  - An MCP server over stdio or streamable HTTP (serve)
  - An interactive chat that understands messages like "add Standup tomorrow" (chat)
  - A converter from JSON events to an .ics file (export)
  - An OAuth helper for connecting Google or Microsoft calendars (auth)`,
		Version:      server.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "calendar-mcp version %s\n" .Version}}`)

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional .env file read before the environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newChatCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newAuthCmd(a))
	return root
}
