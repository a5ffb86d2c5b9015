// Package relational implements C1's RelationalStore over Postgres via
// pgx/v5. Every caller-facing transaction sets `app.org_id` / `app.user_id` as
// session-scoped Postgres variables so Row-Level Security policies filter
// rows even if application code has a bug (§4.1, §5); background workers
// use WithoutRLS, which skips those SET LOCAL calls so migrations and job
// workers retain full visibility.
package relational

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// DB wraps a pgx connection pool and the RLS transaction helper.
type DB struct {
	Pool *pgxpool.Pool
}

// New dials Postgres and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sibylerr.StorageUnavailable("relational store", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// WithRLS runs fn inside a transaction with `app.org_id` and `app.user_id`
// set via SET LOCAL, which Postgres automatically clears at transaction
// end (and hence on connection return to the pool). userID may be uuid.Nil
// when the caller is not yet associated with a specific user (e.g. API-key
// auth without a user row).
func (db *DB) WithRLS(ctx context.Context, orgID, userID uuid.UUID, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return sibylerr.StorageUnavailable("relational store", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.org_id', $1, true)", orgID.String()); err != nil {
		return sibylerr.StorageUnavailable("relational store", err)
	}
	if userID != uuid.Nil {
		if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID.String()); err != nil {
			return sibylerr.StorageUnavailable("relational store", err)
		}
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return sibylerr.StorageUnavailable("relational store", err)
	}
	return nil
}

// WithoutRLS runs fn inside a plain transaction with neither session
// variable set, so RLS policies allow full visibility (migrations,
// background workers).
func (db *DB) WithoutRLS(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return sibylerr.StorageUnavailable("relational store", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return sibylerr.StorageUnavailable("relational store", err)
	}
	return nil
}
