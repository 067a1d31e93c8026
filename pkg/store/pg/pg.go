// Package pg implements store.Store on top of Postgres via database/sql and
// the jackc/pgx/v5 stdlib driver, grounded on the raw-SQL repository style in
// vanducng-goclaw's internal/store/pg package.
package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coworklab/parley/pkg/store"
)

// Store implements store.Store against a *sql.DB connection pool.
type Store struct {
	db *sql.DB
}

// New creates a Postgres-backed Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// sqlTx wraps *sql.Tx to satisfy store.Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

// Begin opens a new *sql.Tx at Postgres's default READ COMMITTED isolation.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pg: begin tx: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read/write
// helpers run either standalone or inside an open transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer resolves a store.Tx (or nil) to a querier, falling back to the pool.
func (s *Store) execer(tx store.Tx) querier {
	if tx == nil {
		return s.db
	}
	t, ok := tx.(*sqlTx)
	if !ok {
		// A Tx from a different Store implementation (e.g. the in-memory
		// fake) is never passed to pg.Store in practice; fail loud.
		panic("pg: store.Tx from a different implementation")
	}
	return t.tx
}
