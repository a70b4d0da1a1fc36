package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agenticos/internal/server"
)

var serveAddr string

// serveCmd runs the HTTP API for the browser shell
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API used by the browser shell",
	Long: `Starts the HTTP API: generation with per-session cancellation, history,
template and instruction selection, provider status, /healthz and /metrics.

Example:
  agentic serve --addr 127.0.0.1:8787`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// No --timeout here: the server runs until interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(appOptions{metrics: true})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	srv := server.New(cfg, server.Deps{
		Generator: a.orch,
		Catalog:   a.catalog,
		History:   a.db.History(),
		Creds:     a.creds,
		Prober:    a.client,
		Metrics:   a.metrics,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "agentic API listening on http://%s\n", cfg.Addr)
	logger.Info("serving", zap.String("addr", cfg.Addr), zap.Strings("origins", cfg.AllowedOrigins))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
