// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
	// Attempts is the number of ping attempts before giving up. Zero means 5.
	Attempts uint64
	// BaseDelay is the first backoff interval. Zero means 500ms.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff interval. Zero means 10s.
	MaxDelay time.Duration
	Logger   *slog.Logger
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Attempts == 0 {
		o.Attempts = 5
	}
	if o.BaseDelay == 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// pinger is the part of *pgxpool.Pool Connect waits on.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for dsn and waits, with exponential backoff, until the
// database answers a ping. It is meant for process start-up only.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	if err := waitForPing(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, db pinger, opts ConnectOptions) error {
	backoff := retry.NewExponential(opts.BaseDelay)
	backoff = retry.WithCappedDuration(opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(opts.Attempts-1, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			opts.Logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}
