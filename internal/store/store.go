// Package store implements the C5 persistence contract from spec.md §3/§4.5:
// typed tables for files, tokens, postings, blocks, the per-file line map,
// the line cache, co-occurrence counts, dense vectors, centroids, and
// feedback. It is backed by an embedded, transactional, single-writer
// SQLite database (modernc.org/sqlite, pure Go, no cgo) — the "opaque
// embedded transactional key-value/table store" spec.md §1 treats as an
// external collaborator.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/trans/xerp-sub001/internal/xerrors"
)

//go:embed migrations/001_initial_schema.up.sql
var schemaSQL string

// Store wraps the embedded database. Reads may run concurrently; writes are
// serialized through writeMu to honor the single-writer model in spec.md §5
// ("all writes to the persistence layer are serialized through one
// writer").
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open creates or opens the database at path, applying the schema
// migration and the performance pragmas the teacher's own SQLite store uses
// (WAL mode, NORMAL synchronous, a busy timeout so concurrent readers don't
// immediately fail).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.NewStoreError("open", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, xerrors.NewStoreError("pragma", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, xerrors.NewStoreError("migrate", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle. Safe to call once; callers
// should defer it immediately after Open succeeds (spec.md §9: "opened once
// per process ... scoped acquisition with guaranteed release").
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for read-only ad hoc queries (terms,
// outline). Write paths must go through WithWriteTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithWriteTx runs fn inside a single SQLite transaction, holding writeMu
// for its whole duration so concurrent indexer/trainer/feedback writers
// never interleave (spec.md §5). On any error or panic the transaction is
// rolled back and the panic re-raised after rollback.
func (s *Store) WithWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.NewStoreError("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.NewStoreError("commit", err)
	}
	return nil
}

// WithReadTx runs fn inside a read-only transaction, so every read fn makes
// sees one consistent snapshot. The query engine does not use it: its reads
// go through the Store's methods, each a separate statement on the shared
// handle, so a query running alongside a write can observe both states.
func (s *Store) WithReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return xerrors.NewStoreError("begin-read", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.NewStoreError(op, err)
}
