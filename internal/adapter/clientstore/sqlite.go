// Package clientstore is the durable client-side storage of a session:
// bearer tokens, resume target, cookie consent and the conversion event
// queue. It is backed by SQLite. Keys live in one of two scopes: local
// values survive across sessions, session values are wiped by ClearSession.
package clientstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arturoeanton/dyana-web/internal/adapter/clientstore/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Scope selects the lifetime of a stored key.
type Scope string

const (
	ScopeLocal   Scope = "local"
	ScopeSession Scope = "session"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open client store: %w", err)
	}
	// one connection: SQLite has a single writer and :memory: databases
	// are per-connection
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New runs migrations against an already-open database.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate client store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// RunMigrations applies the embedded schema with goose.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, scope Scope, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE scope = ? AND key = ?`, string(scope), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s[%s]: %w", scope, key, err)
	}
	return value, nil
}

// Set writes value for key; last write wins.
func (s *Store) Set(ctx context.Context, scope Scope, key string, value []byte) error {
	return setKV(ctx, s.db, scope, key, value, s.now())
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, scope Scope, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ? AND key = ?`, string(scope), key)
	if err != nil {
		return fmt.Errorf("delete %s[%s]: %w", scope, key, err)
	}
	return nil
}

// ClearSession wipes every session-scoped key and the conversion queue.
func (s *Store) ClearSession(ctx context.Context) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE scope = ?`, string(ScopeSession)); err != nil {
			return fmt.Errorf("clear session keys: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversion_queue`); err != nil {
			return fmt.Errorf("clear conversion queue: %w", err)
		}
		return nil
	})
}

func setKV(ctx context.Context, db DBTX, scope Scope, key string, value []byte, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, string(scope), key, value, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s[%s]: %w", scope, key, err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
