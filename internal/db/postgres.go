package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings is the tunable subset of the pgx pool configuration.
// Sizing comes from config so the api-server and the auditor can run
// with different footprints against the same database.
type PoolSettings struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// DefaultPoolSettings sizes the pool for the one-shot tools (seed,
// simulate) that don't load the full service config.
func DefaultPoolSettings(dsn string) PoolSettings {
	return PoolSettings{DSN: dsn, MaxConns: 10, MinConns: 1}
}

func ConnectPostgres(ctx context.Context, ps PoolSettings) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(ps.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = ps.MaxConns
	cfg.MinConns = ps.MinConns
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
