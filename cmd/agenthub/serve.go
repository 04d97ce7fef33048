package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bazelment/agenthub/runtime"
	"github.com/bazelment/agenthub/server"
	"github.com/bazelment/agenthub/session"
)

var (
	serveAddr        string
	serveConfigPath  string
	serveOpenCodeURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session manager HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default :8484)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to YAML config file")
	serveCmd.Flags().StringVar(&serveOpenCodeURL, "opencode-url", "", "Base URL of the OpenCode backend")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := newLogger()

	cfg, err := LoadServerConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if serveOpenCodeURL != "" {
		cfg.OpenCodeURL = serveOpenCodeURL
	}

	rc, err := cfg.runtimeConfig()
	if err != nil {
		return err
	}

	startupTimeout, err := cfg.startupTimeout()
	if err != nil {
		return err
	}
	var opts []session.RegistryOption
	if startupTimeout > 0 {
		opts = append(opts, session.WithStartupTimeout(startupTimeout))
	}
	if cfg.SubscriberBuffer > 0 {
		opts = append(opts, session.WithSubscriberBuffer(cfg.SubscriberBuffer))
	}
	registry := session.NewRegistry(runtime.NewFactory(rc, logger), logger, opts...)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewServer(registry, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", "error", err)
	}
	registry.Shutdown()
	return nil
}
