// Package bootstrap connects the long-lived gateways and builds the service
// aggregate shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/featureflags"
	"murmur/internal/middleware"
	"murmur/internal/service"
	"murmur/internal/storage"
	"murmur/internal/vectorindex"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipIndexCheck starts even when the vector index does not answer.
	SkipIndexCheck bool
}

// Runtime is every connected dependency of the service.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Index    vectorindex.Index
	Media    *storage.Media
	Flags    *featureflags.Manager
	Services *service.Services
}

type heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// InitRuntime connects to the database, Redis, the vector index and the
// object store and wires the services on top of them.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	index := vectorindex.New(cfg)
	if hb, ok := index.(heartbeater); ok && !opts.SkipIndexCheck {
		if err := hb.Heartbeat(ctx); err != nil {
			closeDB(db)
			_ = rdb.Close()
			return nil, fmt.Errorf("vector index unreachable: %w", err)
		}
	}

	media, err := storage.New(ctx, cfg)
	if err != nil {
		closeDB(db)
		_ = rdb.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}

	// Minted image links are reused for half their lifetime.
	tokens, err := cache.NewTokenCache(cfg.ImageTTL() / 2)
	if err != nil {
		closeDB(db)
		_ = rdb.Close()
		return nil, err
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)
	services := service.NewServices(service.Deps{
		Config: cfg,
		DB:     db,
		Store:  cache.NewStore(rdb),
		Index:  index,
		Media:  media,
		Tokens: tokens,
		Flags:  flags,
	})

	return &Runtime{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Index:    index,
		Media:    media,
		Flags:    flags,
		Services: services,
	}, nil
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() error {
	var errs []error
	if sqlDB, err := r.DB.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close database: %w", cerr))
		}
	}
	if r.Redis != nil {
		if rerr := r.Redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}
	return errors.Join(errs...)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Warn("failed to close database", "error", cerr)
		}
	}
}
