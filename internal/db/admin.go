package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewAdminPool connects to the managed engine's default database with
// administrative privileges. The pool is shared by read-only telemetry and
// provisioning lookups; mutating sessions go through ShortLivedConn instead so
// elevated sessions are never left pooled.
func NewAdminPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse admin db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create admin db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping admin db: %w", err)
	}

	return pool, nil
}

// ShortLivedConn opens a fresh single connection for a mutating administrative
// statement. Callers must Close it as soon as the statement completes.
func ShortLivedConn(ctx context.Context, databaseURL string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open admin connection: %w", err)
	}
	return conn, nil
}
