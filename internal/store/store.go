// Package store implements the persistent local state for spyglass as a
// SQLite database: auth credentials, cached target resolutions, pagination
// cursors, project aliases, and the org region map.
//
// The store is a client-side cache, not a source of truth. Everything in it
// can be regenerated from the service except auth tokens, so schema repair
// (see schema_check.go) is always additive and never drops data.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/spyglass-cli/spyglass/internal/store/migrations"
)

// lockAcquireTimeout bounds how long a second spy invocation waits for the
// store before giving up. Concurrent invocations are expected (shell
// completion, parallel CI steps) and must not fail with a lock error.
const lockAcquireTimeout = 5 * time.Second

// lockRetryInterval is the poll interval while waiting for the file lock.
const lockRetryInterval = 50 * time.Millisecond

// Store is the process-wide handle to the local database. One process owns
// the write lock per logical path; readers go through the same handle.
type Store struct {
	db     *sql.DB
	dbPath string
	lock   *flock.Flock
	closed atomic.Bool
}

// setupWASMCache configures WASM compilation caching so the embedded SQLite
// build is compiled once per machine instead of once per invocation.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "spyglass", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// Open opens (creating if needed) the store at path. File-backed stores take
// an exclusive advisory lock next to the database; acquisition retries for up
// to lockAcquireTimeout before failing.
func Open(ctx context.Context, path string) (*Store, error) {
	var connStr string
	isMemory := path == ":memory:"
	if isMemory {
		// Shared in-memory database for tests. WAL does not apply to
		// memory databases, so use the default journal there.
		connStr = "file:spymem?mode=memory&cache=shared&_pragma=busy_timeout(30000)&_time_format=sqlite"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	var fileLock *flock.Flock
	if !isMemory {
		fileLock = flock.New(path + ".lock")
		lockCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
		defer cancel()
		ok, err := fileLock.TryLockContext(lockCtx, lockRetryInterval)
		if err != nil || !ok {
			return nil, fmt.Errorf("store is locked by another spy process (waited %s): %w", lockAcquireTimeout, err)
		}
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		unlock(fileLock)
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if isMemory {
		// In-memory databases are per-connection; force a single one so
		// every statement sees the same data.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL allows one writer plus concurrent readers; cap the pool to
		// avoid goroutine pile-up on the write lock.
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			unlock(fileLock)
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		unlock(fileLock)
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	s := &Store{db: db, dbPath: path, lock: fileLock}

	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		unlock(fileLock)
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		unlock(fileLock)
		return nil, err
	}
	return s, nil
}

func unlock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}

// Close checkpoints the WAL, closes the database, and releases the file
// lock. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	// Flush the WAL so writes survive between CLI invocations even if the
	// next reader opens the file without WAL support.
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	unlock(s.lock)
	return err
}

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool { return s.closed.Load() }

// Path returns the database path this store was opened with.
func (s *Store) Path() string { return s.dbPath }

// withTx runs fn inside a transaction, committing on nil error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nowUTC is the timestamp format stored in cached_at style columns.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

var (
	defaultStore   *Store
	defaultStoreMu sync.Mutex
)

// Default returns the lazily-constructed process-wide store rooted at dir.
// The first caller's dir wins; later calls return the same handle.
func Default(ctx context.Context, dir string) (*Store, error) {
	defaultStoreMu.Lock()
	defer defaultStoreMu.Unlock()
	if defaultStore != nil && !defaultStore.IsClosed() {
		return defaultStore, nil
	}
	path := dir
	if !strings.HasSuffix(path, ".db") && path != ":memory:" {
		path = filepath.Join(dir, "spyglass.db")
	}
	s, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defaultStore = s
	return s, nil
}

// CloseDefault closes the process-wide store if it was opened.
func CloseDefault() error {
	defaultStoreMu.Lock()
	defer defaultStoreMu.Unlock()
	if defaultStore == nil {
		return nil
	}
	err := defaultStore.Close()
	defaultStore = nil
	return err
}
