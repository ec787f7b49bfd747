package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport to serve: http or stdio (overrides SUPPORTBILL_TRANSPORT)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools",
	Long: `Serve the billing tools over MCP. The http transport listens on
SUPPORTBILL_SERVER_HOST:SUPPORTBILL_SERVER_PORT with /mcp, /health and
/metrics. The stdio transport reads JSON-RPC from stdin and never
authenticates.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if mode, _ := cmd.Flags().GetString("transport"); mode != "" {
		if err := os.Setenv("SUPPORTBILL_TRANSPORT", mode); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	server := rt.app.MCPServer()
	if rt.cfg.Transport.Mode == "stdio" {
		return runStdio(ctx, rt.logger, server)
	}
	return runHTTP(ctx, rt.logger, rt.cfg.Server.Addr(), rt.app.HTTPHandler(server))
}

func runStdio(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is cancelled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		return err
	}
	logger.Info("shutting down")
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}
