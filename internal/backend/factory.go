package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/events"
	"expensetracker/internal/storage"
	"expensetracker/internal/storage/memory"
	"expensetracker/internal/storage/sqlstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the repository, seeds it when empty and attaches an
// event publisher. A broker that cannot be reached is logged and replaced
// by a no-op publisher so the API stays up.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed, err := storage.LoadSeed(config.SeedFile)
	if err != nil {
		return nil, err
	}

	var repo storage.Repository
	switch config.Type {
	case MemoryBackend:
		repo = memory.New()
	case SQLiteBackend:
		repo, err = sqlstore.OpenSQLite(config.SQLiteDBPath, sqlstore.WithLogger(f.logger))
	case PostgresBackend:
		repo, err = sqlstore.OpenPostgres(config.DatabaseURL, sqlstore.WithLogger(f.logger))
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", config.Type, err)
	}

	seeded, err := storage.SeedIfEmpty(ctx, repo, seed)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed %s repository: %w", config.Type, err)
	}

	publisher := f.createPublisher(config)

	f.logger.Info("Initialized backend",
		"backend", config.Type,
		"seeded", seeded,
		"amqp_enabled", config.AMQPURL != "")

	return &BackendResult{
		Repository: repo,
		Publisher:  publisher,
		Cleanup: func() error {
			return errors.Join(publisher.Close(), repo.Close())
		},
	}, nil
}

func (f *DefaultFactory) createPublisher(config Config) events.Publisher {
	if config.AMQPURL == "" {
		return events.Nop{}
	}
	client, err := events.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return events.Nop{}
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
