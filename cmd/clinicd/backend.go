// AngelaMos | 2026
// backend.go

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/clinic-session/internal/admin"
	"github.com/carterperez-dev/clinic-session/internal/config"
	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/storage"
)

// backend is the durable session store plus the connections it owns.
// redis is nil unless the redis driver is in use.
type backend struct {
	store  storage.Store
	redis  *redis.Client
	admin  admin.HandlerConfig
	closes []func() error
}

func openBackend(
	ctx context.Context,
	cfg *config.Config,
	instanceID string,
	logger *slog.Logger,
) (*backend, error) {
	be := &backend{}
	ns := cfg.Storage.Namespace
	connName := fmt.Sprintf("%s:%s:%s", cfg.App.Name, ns, instanceID)

	switch cfg.Storage.Driver {
	case config.StorageRedis:
		rdb, err := core.NewRedis(ctx, cfg.Redis, connName)
		if err != nil {
			return nil, err
		}
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

		be.store = storage.NewRedis(rdb.Client, ns, instanceID)
		be.redis = rdb.Client
		be.admin.RedisStats = rdb.PoolStats
		be.closes = append(be.closes, rdb.Close)

	case config.StoragePostgres:
		db, err := core.NewDatabase(ctx, cfg.Database, connName)
		if err != nil {
			return nil, err
		}
		logger.Info("database connected",
			"max_open_conns", cfg.Database.MaxOpenConns,
			"max_idle_conns", cfg.Database.MaxIdleConns,
		)

		pg := storage.NewPostgres(db.DB, db.URL, ns, instanceID)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close() //nolint:errcheck // cleanup on failed start
			return nil, fmt.Errorf("prepare storage schema: %w", err)
		}

		be.store = pg
		be.admin.DBStats = db.Stats
		be.closes = append(be.closes, db.Close)

	default:
		be.store = storage.NewMemory(ns, instanceID)
		logger.Warn("memory storage: the session will not survive a restart")
	}

	be.closes = append([]func() error{be.store.Close}, be.closes...)
	return be, nil
}

func (b *backend) close(logger *slog.Logger) {
	for _, fn := range b.closes {
		if err := fn(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}
}
