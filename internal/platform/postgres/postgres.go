// Package postgres opens the pgx connection pool backing the audit store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// DB exposes the pool through database/sql for the stores and the outbox.
type DB struct {
	*sql.DB
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: stdlib.OpenDBFromPool(pool), pool: pool}, nil
}

func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	err := d.DB.Close()
	d.pool.Close()
	return err
}

// ReadyCheck reports whether the pool can reach the database.
func ReadyCheck(d *DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if d == nil || d.pool == nil {
			return errors.New("db not configured")
		}
		return d.pool.Ping(ctx)
	}
}
