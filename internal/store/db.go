// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package store provides PostgreSQL connection, transaction and schema
// migration support.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DB is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is implemented by handles that can open a transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction when db supports one, and directly on
// db otherwise. The transaction commits when fn returns nil and rolls back
// when fn fails or panics; a panic is re-raised after rollback.
func WithTx(ctx context.Context, db DB, fn func(ctx context.Context, q DB) error) (err error) {
	beginner, ok := db.(TxBeginner)
	if !ok {
		return fn(ctx, db)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // panic takes precedence
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // fn error takes precedence
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = oops.Code("TX_COMMIT_FAILED").Wrap(commitErr)
		}
	}()

	return fn(ctx, tx)
}
