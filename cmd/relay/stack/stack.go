// Package stack assembles the relay components from a config.Config. It is
// shared by the relay subcommands.
package stack

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/inference"
	"github.com/papercomputeco/relay/pkg/prompt"
	"github.com/papercomputeco/relay/pkg/session"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/postgres"
	"github.com/papercomputeco/relay/pkg/storage/redis"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
	"github.com/papercomputeco/relay/relay"
)

// OpenDriver opens the storage driver selected by cfg.Store.Driver.
func OpenDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Driver, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		logger.Info("using redis storage", zap.String("addr", cfg.Store.Redis.Addr()), zap.Int("db", cfg.Store.Redis.DB))
		return redis.NewDriver(redis.Options{
			Addr:     cfg.Store.Redis.Addr(),
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}), nil

	case config.DriverSQLite:
		driver, err := sqlite.NewDriver(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("could not open sqlite store %s: %w", cfg.Store.SQLite.Path, err)
		}
		logger.Info("using SQLite storage", zap.String("path", cfg.Store.SQLite.Path))
		return driver, nil

	case config.DriverPostgres:
		driver, err := postgres.NewDriver(cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("could not open postgres store: %w", err)
		}
		logger.Info("using postgres storage")
		return driver, nil

	case config.DriverMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewStore wraps driver in a session.Store configured by cfg.
func NewStore(driver storage.Driver, cfg *config.Config, logger *zap.Logger) *session.Store {
	return session.NewStore(driver, session.StoreOptions{
		KeyPrefix: cfg.Session.KeyPrefix,
		Timeout:   cfg.Store.Timeout.Duration,
	}, logger)
}

// NewComposer builds the prompt composer.
func NewComposer(cfg *config.Config) (*prompt.Composer, error) {
	loc := time.UTC
	if cfg.Prompt.InjectTime && cfg.Prompt.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Prompt.Timezone)
		if err != nil {
			return nil, fmt.Errorf("could not load timezone %q: %w", cfg.Prompt.Timezone, err)
		}
	}

	return prompt.NewComposer(prompt.Config{
		System:          cfg.Prompt.System,
		InjectTime:      cfg.Prompt.InjectTime,
		Location:        loc,
		TimeLayout:      cfg.Prompt.TimeLayout,
		MaxHistoryTurns: cfg.Prompt.MaxHistoryTurns,
	}), nil
}

// NewInvoker builds the inference invoker for the configured provider.
func NewInvoker(cfg *config.Config, logger *zap.Logger) (*inference.Invoker, error) {
	model, err := inference.NewModel(inference.ProviderConfig{
		Provider: cfg.Inference.Provider,
		Model:    cfg.Inference.Model,
		BaseURL:  cfg.Inference.BaseURL,
		APIKey:   cfg.Inference.APIKey,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("using inference provider",
		zap.String("provider", cfg.Inference.Provider),
		zap.String("model", cfg.Inference.Model),
	)

	return inference.NewInvoker(model, cfg.Inference.Options, cfg.Inference.Timeout.Duration, logger), nil
}

// NewManager builds a relay.Manager over store, replying through dispatcher.
func NewManager(cfg *config.Config, store *session.Store, dispatcher relay.Dispatcher, metrics *relay.Metrics, logger *zap.Logger) (*relay.Manager, error) {
	composer, err := NewComposer(cfg)
	if err != nil {
		return nil, err
	}

	invoker, err := NewInvoker(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []relay.ManagerOption{relay.WithMetrics(metrics)}
	if cfg.Session.SerializePerKey {
		opts = append(opts, relay.WithLocker(session.NewKeyLocker()))
	}

	return relay.NewManager(store, composer, invoker, dispatcher, logger, opts...), nil
}
