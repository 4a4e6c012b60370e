// Package store is the Postgres durability layer: table DDL, bulk
// upserts with server-side merge rules, post-ingest cleanup, and the
// derived-metrics batch pass. Every mutation is a single statement (or
// a small fixed batch of them) wrapped in its own commit boundary — no
// transaction crosses a task-queue boundary (spec.md §9, "From implicit
// global ORM session to explicit unit-of-work").
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dexflow/dexingest/internal/apperr"
	"github.com/dexflow/dexingest/internal/blockindex"
)

// Store wraps a pgx connection pool. One Store is shared process-wide.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a Store around an already-configured pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool against databaseURL.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSQLFatal, "store.Connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindSQLTransient, "store.Connect", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

func validTable(name string) error {
	if err := blockindex.ValidateTableName(name); err != nil {
		return err
	}
	return nil
}

func sqlIdent(name string) (string, error) {
	if err := validTable(name); err != nil {
		return "", err
	}
	return name, nil
}

func wrapSQLErr(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := apperr.KindSQLTransient
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57": // connection, rollback/deadlock, resources, operator intervention
		default:
			kind = apperr.KindSQLFatal
		}
	}
	return apperr.Wrap(kind, op, fmt.Errorf("%w", err))
}
