package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/auth"
	"sciquest/internal/config"
	"sciquest/internal/infra/memory"
	"sciquest/internal/infra/postgres"
	infraredis "sciquest/internal/infra/redis"
	"sciquest/internal/seed"
)

type topicCache interface {
	app.TopicRepository
	seed.Invalidator
}

// backend bundles the storage stack selected by config: Postgres or the
// in-memory store, with topic caching and feed liveness in Redis when an
// address is configured.
type backend struct {
	store      app.Store
	profiles   auth.ProfileGetter
	seedTarget seed.Target
	topics     topicCache
	feeds      app.FeedRepository
	// memory is set when no database is configured.
	memory *memory.Store
	close  func()
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}
	var closers []func()
	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var loader memory.TopicLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		store := postgres.NewStore(pool)
		b.store, b.profiles, b.seedTarget, loader = store, store, store, store
	} else {
		logger.Warn("no postgres url configured; using the in-memory store")
		store := memory.NewStore()
		b.store, b.profiles, b.seedTarget, loader = store, store, store, store
		b.memory = store
	}

	topicTTL := config.TTLDuration(cfg.Topic.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed; cache reads will fall back to the loader", zap.Error(err))
		}
		b.topics = infraredis.NewTopicRepository(client, loader, topicTTL, logger)
		b.feeds = infraredis.NewFeedStore(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		b.topics = memory.NewTopicRepository(loader, topicTTL)
		b.feeds = memory.NewFeedStore()
	}
	return b, nil
}
