package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/sheetsgate/internal/instrumentation"
	"github.com/teemow/sheetsgate/internal/logging"
	"github.com/teemow/sheetsgate/internal/tools/sheets_tools"
)

func newMCPCmd() *cobra.Command {
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the sheets tools over the MCP stdio transport",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout exposing the
same tools as the HTTP gateway.

The stdio transport is owned by the local user, so no API key is required.
Backend credentials are resolved exactly as for serve. Logs are written to
stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// Metrics have no listener in stdio mode; tracing may still be exported.
			instrConfig := telemetryConfig(cfg)
			provider, err := instrumentation.NewProvider(ctx, instrConfig)
			if err != nil {
				return fmt.Errorf("failed to create instrumentation provider: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = provider.Shutdown(shutdownCtx)
			}()

			bc := newBackendContext(cfg, logger, provider.Metrics(), instrConfig.AuditLogging)
			if err := bc.Start(ctx); err != nil {
				return fmt.Errorf("failed to initialize backend: %w", err)
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := bc.Stop(stopCtx); err != nil {
					logger.Warn("Error during backend shutdown", logging.Err(err))
				}
			}()

			mcpSrv := mcpserver.NewMCPServer("sheetsgate", version,
				mcpserver.WithToolCapabilities(true),
			)
			if err := sheets_tools.RegisterSheetsTools(mcpSrv, bc, readOnly); err != nil {
				return err
			}
			if readOnly {
				logger.Info("MCP server running in read-only mode")
			}

			return runStdioServer(mcpSrv)
		},
	}

	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Only register tools that do not modify spreadsheets")

	return cmd
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
