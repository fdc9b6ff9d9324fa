package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/common/logger"
)

// NewPool opens a pgx pool and pings it.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}

	poolConfig.MaxConns = cfg.Postgres.MaxConns
	poolConfig.MinConns = cfg.Postgres.MinConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("PostgreSQL pool initialized")

	return pool, nil
}

// LogStats writes pool counters; the scheduler calls it periodically.
func LogStats(pool *pgxpool.Pool) {
	st := pool.Stat()
	logger.Debug().
		Int32("total", st.TotalConns()).
		Int32("idle", st.IdleConns()).
		Int32("acquired", st.AcquiredConns()).
		Int64("acquire_count", st.AcquireCount()).
		Dur("acquire_duration", st.AcquireDuration()).
		Msg("PostgreSQL pool stats")
}
