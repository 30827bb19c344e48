package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file for local development (ignore errors in production/docker)
	if err := cli.LoadEnvFile(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := cli.LoadConfig((*config.Config).ValidateServer)
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp, os.Stdout)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog())
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldBackend, cfg.DataBackend, applog.FieldError, err)
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	srv, err := server.New(server.Config{
		Addr:               ":" + cfg.Port,
		CacheTTL:           cfg.CacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, res.Repository, res.Publisher, logger, metrics.New())
	if err != nil {
		return err
	}

	logger.Info("Starting expense gateway", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	err = cli.Run(ctx, logger, 30*time.Second,
		func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
			}
			return nil
		},
		srv.Shutdown)
	if err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
