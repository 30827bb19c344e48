// Package cli provides common initialization utilities shared by
// cmd/expensectl, cmd/expense-gateway and cmd/expense-worker.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"expensetracker/internal/config"
	"expensetracker/internal/export/sheets"
	applog "expensetracker/internal/log"
)

// LoadEnvFile loads .env files for local development. Missing files are
// ignored since production injects the environment directly.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// SheetsConfig picks the Google Sheets settings out of cfg.
func SheetsConfig(cfg *config.Config) sheets.Config {
	return sheets.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
	}
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	if out == nil {
		out = os.Stderr
	}
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Output:    out,
		Component: component,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadConfig reads the environment and applies validate, typically one of
// the Config.Validate* methods.
func LoadConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if validate != nil {
		if err := validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Run starts serve and, once ctx is done, calls shutdown with a fresh
// context bounded by timeout. shutdown also runs when serve returns on its
// own. It returns the first error from either side.
func Run(ctx context.Context, logger *applog.Logger, timeout time.Duration, serve func() error, shutdown func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	gctx, stopped := context.WithCancel(gctx)

	g.Go(func() error {
		defer stopped()
		return serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Shutdown timeout reached", "timeout", timeout)
			}
			return err
		}
		logger.Info("Shutdown complete")
		return nil
	})

	return g.Wait()
}
