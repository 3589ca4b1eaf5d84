// Package cache provides a time-based response cache layered between the
// engine and the wire transport.
//
// The cache implements the same Transport interface it wraps, so the
// layers above are oblivious to whether a response came from cache or
// wire. Entries expire by age against an injected clock; a stale or
// missing entry falls through to the wrapped transport and the fresh
// response is written back.
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/redpath/internal/record"
	"github.com/roach88/redpath/internal/redfish/transport"
)

//go:embed schema.sql
var schemaSQL string

// DefaultTTL is how long a cached response stays fresh unless configured
// otherwise.
const DefaultTTL = 10 * time.Second

// Clock is the time source used for entry age checks.
type Clock interface {
	Now() time.Time
}

// Store is a SQLite-backed read-through GET cache over a Transport.
//
// SQLite only supports one writer at a time; the connection pool is
// pinned to a single connection so concurrent readers never trip
// SQLITE_BUSY.
type Store struct {
	db    *sql.DB
	next  transport.Transport
	ttl   time.Duration
	clock Clock
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides the entry freshness window.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source used for age checks.
func WithClock(c Clock) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// Open creates or opens a cache database at path, wrapping next.
// Applies required pragmas and the schema automatically; safe to call on
// an existing database.
func Open(path string, next transport.Transport, opts ...StoreOption) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect cache database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		db:    db,
		next:  next,
		ttl:   DefaultTTL,
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RootURI implements transport.Transport.
func (s *Store) RootURI() string { return s.next.RootURI() }

// Get implements transport.Transport with read-through caching.
//
// Only successful responses (code < 400) are cached; errors always fall
// through so a transient failure never gets pinned for a TTL.
func (s *Store) Get(ctx context.Context, path string) (transport.Result, error) {
	key := record.URIKey(path)

	if res, ok := s.lookup(ctx, key); ok {
		slog.Debug("cache hit", "path", path)
		return res, nil
	}

	res, err := s.next.Get(ctx, path)
	if err != nil {
		return transport.Result{}, err
	}
	if res.Code < 400 {
		if err := s.write(ctx, key, path, res); err != nil {
			// A cache write failure degrades to uncached operation.
			slog.Warn("cache write failed", "path", path, "error", err)
		}
	}
	return res, nil
}

// lookup returns the cached response for key when present and fresh.
func (s *Store) lookup(ctx context.Context, key string) (transport.Result, bool) {
	var (
		code      int
		body      []byte
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, body, fetched_at FROM responses WHERE path_hash = ?
	`, key).Scan(&code, &body, &fetchedAt)
	if err == sql.ErrNoRows {
		return transport.Result{}, false
	}
	if err != nil {
		slog.Warn("cache read failed", "error", err)
		return transport.Result{}, false
	}

	age := s.clock.Now().Unix() - fetchedAt
	if age > int64(s.ttl/time.Second) {
		return transport.Result{}, false
	}
	return transport.Result{Code: code, Body: body}, true
}

// write upserts a response. ON CONFLICT refresh keeps one row per path.
func (s *Store) write(ctx context.Context, key, path string, res transport.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (path_hash, path, code, body, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path_hash) DO UPDATE SET
			code = excluded.code,
			body = excluded.body,
			fetched_at = excluded.fetched_at
	`, key, path, res.Code, []byte(res.Body), s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("write response for %q: %w", path, err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
