package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/events"
	"expensetracker/internal/export/sheets"
	"expensetracker/internal/gateway/rest"
	applog "expensetracker/internal/log"
	"expensetracker/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := cli.LoadEnvFile(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp, os.Stdout)
	logger.Info("Starting expense-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	sheetsClient, err := sheets.New(ctx, cli.SheetsConfig(cfg), logger.WithComponent(applog.ComponentSheets).Slog())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		return err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sheetsClient, logger.WithComponent("worker").Slog())

	// Catch up on anything published while the worker was down. The gateway
	// may not be up yet, so a failure here is not fatal.
	if gw, err := rest.New(cfg.GatewayURL, cfg.GatewayTimeout); err != nil {
		logger.Warn("Skipping startup sync", applog.FieldError, err)
	} else if _, err := syncWorker.StartupSync(ctx, gw); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	err = cli.Run(ctx, logger, 30*time.Second,
		func() error {
			err := amqpClient.Consume(ctx, syncWorker.Handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
		func(context.Context) error { return amqpClient.Close() })
	if err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		return err
	}
	logger.Info("Worker shutdown complete")
	return nil
}
