package app

import (
	"context"
	"fmt"

	"github.com/zagip/zagip-game/internal/common/cache"
	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/platform/memory"
	"github.com/zagip/zagip-game/internal/platform/objectstore"
	"github.com/zagip/zagip-game/internal/platform/postgres"
	"github.com/zagip/zagip-game/internal/platform/redis"
)

const (
	uploadsBaseURL   = "/api/uploads"
	redisKeyPrefix   = "zagip:"
	poolStatsSpec    = "@every 5m"
	poolStatsJobName = "pg-pool-stats"
	kvSweepJobName   = "kv-sweep"
)

// OpenInfra connects the configured store, KV and artwork drivers. The returned
// close function releases them in reverse order.
func OpenInfra(ctx context.Context, cfg *config.Config) (Infra, func(), error) {
	var (
		infra   Infra
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (Infra, func(), error) {
		closeAll()
		return Infra{}, func() {}, err
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn().Msg("Using in-memory store, data is lost on restart")
		infra.Store = memory.NewStore()
	default:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fail(fmt.Errorf("migrate: %w", err))
		}
		infra.Store = postgres.NewStore(pool)
		infra.Jobs = append(infra.Jobs, ScheduledJob{
			Name: poolStatsJobName,
			Spec: poolStatsSpec,
			Run:  noop(func() { postgres.LogStats(pool) }),
		})
	}

	if cfg.Redis.Enabled {
		client, err := redis.Open(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		closers = append(closers, func() { _ = client.Close() })
		infra.KV = cache.NewRedisKV(client.Client, redisKeyPrefix)
	} else {
		logger.Warn().Msg("Redis disabled, sessions and pending referrals are kept in process")
		kv := cache.NewMemoryKV()
		infra.KV = kv
		infra.Jobs = append(infra.Jobs, ScheduledJob{
			Name: kvSweepJobName,
			Spec: cfg.Referral.SweepSpec,
			Run: noop(func() {
				if n := kv.Sweep(); n > 0 {
					logger.Debug().Int("expired", n).Int("remaining", kv.Len()).Msg("KV sweep")
				}
			}),
		})
	}

	switch cfg.Artwork.Driver {
	case config.ArtworkDriverMemory:
		uploads := objectstore.NewMemory(uploadsBaseURL)
		infra.Artwork = uploads
		infra.Uploads = uploads
	default:
		r2, err := objectstore.NewR2(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("artwork storage: %w", err))
		}
		infra.Artwork = r2
	}

	return infra, closeAll, nil
}
