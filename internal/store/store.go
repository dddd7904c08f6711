package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const fileMode os.FileMode = 0600

// Mode selects a read-only or read-write transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// DB is the durable local store. Each table is a bbolt bucket holding JSON rows.
type DB struct {
	bolt *bolt.DB
	path string
}

type options struct {
	timeout        time.Duration
	skipMigrations bool
}

type Option func(*options)

// WithTimeout sets how long Open waits for the file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// SkipMigrations opens the file without applying pending schema versions.
func SkipMigrations() Option {
	return func(o *options) { o.skipMigrations = true }
}

// Open opens (or creates) the store at path and brings its schema up to date.
func Open(path string, opts ...Option) (*DB, error) {
	o := options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create dir: %w", ErrStorage, err)
		}
	}

	bdb, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: o.timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, path, err)
	}

	db := &DB{bolt: bdb, path: path}
	if !o.skipMigrations {
		if _, err := db.MigrateUp(); err != nil {
			_ = bdb.Close()
			return nil, err
		}
	}
	return db, nil
}

func (db *DB) Path() string { return db.path }

func (db *DB) Close() error {
	if err := db.bolt.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrStorage, err)
	}
	return nil
}

// Transaction runs fn against the listed tables. All writes commit together or
// not at all. An error returned by fn is returned as is; failures of the
// store itself are wrapped in ErrStorage.
func (db *DB) Transaction(ctx context.Context, mode Mode, tables []Table, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var fnErr error
	run := func(btx *bolt.Tx) error {
		tx := newTx(btx, tables, mode == ReadWrite)
		fnErr = fn(tx)
		return fnErr
	}

	var err error
	if mode == ReadWrite {
		err = db.bolt.Update(run)
	} else {
		err = db.bolt.View(run)
	}

	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	return nil
}

// Update is shorthand for a ReadWrite transaction.
func (db *DB) Update(ctx context.Context, tables []Table, fn func(*Tx) error) error {
	return db.Transaction(ctx, ReadWrite, tables, fn)
}

// View is shorthand for a ReadOnly transaction.
func (db *DB) View(ctx context.Context, tables []Table, fn func(*Tx) error) error {
	return db.Transaction(ctx, ReadOnly, tables, fn)
}

// Tables lists the tables of a single-table operation.
func Tables(t ...Table) []Table { return t }
