// ABOUTME: serve subcommand running the MCP server
// ABOUTME: stdio by default; http adds /api/mcp, /metrics and /healthz next to /mcp

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/calendar-mcp/pkg/config"
	"github.com/harper/calendar-mcp/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		transport string
		httpAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar MCP server",
		Long: `Start the Model Context Protocol server.

Transports:
  stdio  - JSON-RPC over stdin/stdout (default)
  http   - streamable HTTP on /mcp plus the JSON tool endpoint POST /api/mcp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("transport") {
				a.cfg.Transport = strings.ToLower(transport)
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTPAddr = httpAddr
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a.cfg, a.logger)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "Transport: stdio or http (overrides TRANSPORT)")
	cmd.Flags().StringVar(&httpAddr, "addr", ":8080", "Listen address for the http transport (overrides HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	srv := server.NewFromConfig(cfg, logger)
	logger.Info("calendar MCP server starting",
		slog.String("transport", cfg.Transport),
		slog.Bool("ish_mode", cfg.ISH()),
		slog.String("ics_dir", cfg.ICSOutputDir))

	switch cfg.Transport {
	case config.TransportStdio:
		return srv.Serve(ctx)
	case config.TransportHTTP:
		return srv.ListenAndServe(ctx, cfg.HTTPAddr)
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
