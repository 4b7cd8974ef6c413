// Package storage is the persistence substrate shared by the analysis cache
// and the portfolio ledger: a flat string-keyed byte store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/investscope/pkg/config"
	"github.com/wonny/investscope/pkg/database"
	"github.com/wonny/investscope/pkg/logger"
	"github.com/wonny/investscope/pkg/redis"
)

var (
	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("storage: key not found")
	// ErrCapacity is returned by Set when the backend is out of space.
	ErrCapacity = errors.New("storage: capacity exceeded")
)

// Substrate is a key-value store. Implementations are safe for concurrent use.
type Substrate interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Deps carries the connections a backend may need. Unused fields may be nil.
type Deps struct {
	Redis *redis.Client
	DB    *database.DB
}

// Open builds the substrate selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config, deps Deps, log *logger.Logger) (Substrate, error) {
	log = log.Module("storage").WithField("backend", cfg.Storage.Backend)

	switch cfg.Storage.Backend {
	case config.StorageMemory, "":
		log.Info("using in-memory storage")
		return NewMemory(cfg.Storage.MaxEntries), nil

	case config.StorageRedis:
		if deps.Redis == nil || !deps.Redis.Enabled() {
			return nil, fmt.Errorf("redis backend selected but redis is disabled")
		}
		log.Info("using redis storage")
		return NewRedis(deps.Redis, cfg.Storage.KeyPrefix), nil

	case config.StoragePostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres backend selected but no database connection")
		}
		if err := deps.DB.Migrate(ctx); err != nil {
			return nil, err
		}
		log.Info("using postgres storage")
		return NewPostgres(deps.DB.Pool), nil

	case config.StorageBadger:
		store, err := OpenBadger(cfg.Storage.BadgerPath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.Storage.BadgerPath).Info("using badger storage")
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
