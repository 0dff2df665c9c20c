package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/records/memory"
	"fintrack/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	dial   func(url, exchange, queue string) (*amqp.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		dial:   amqp.NewClient,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store records.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// Initialize AMQP client (optional unless required)
	var alerts *amqp.Client
	if config.AMQPURL != "" {
		alerts, err = f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			if config.RequireAMQP {
				store.Close()
				return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
			}
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without budget alerts", "error", err)
			alerts = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	return &BackendResult{
		Store:   store,
		Alerts:  alerts,
		Cleanup: closer(store, alerts),
	}, nil
}

func closer(store records.Store, alerts *amqp.Client) CleanupFunc {
	return func() error {
		var errs []error
		if alerts != nil {
			if err := alerts.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
		return errors.Join(errs...)
	}
}
