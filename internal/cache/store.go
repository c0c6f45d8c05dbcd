// Package cache persists the last fetched task page, together with the query
// it answers, on disk so the client can show tasks while the API is
// unreachable.
//
// Store never returns errors to its callers. Storage failures are logged,
// reported through the notification sink, and turned into a nil or no-op
// result.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"tasky/internal/logging"
	"tasky/internal/notify"
	"tasky/internal/service"
)

// Key is the row holding the cached snapshot.
const Key = "cachedTasks"

//go:embed schema.sql
var schemaFS embed.FS

// Store is the local task cache.
type Store struct {
	db      *sql.DB
	openErr error
	sink    notify.Sink
	logger  *zap.Logger
}

// Open opens (creating if needed) the cache database at path.
func Open(path string, sink notify.Sink, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers; whole-object replaces are small.
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newStore(db, nil, sink, logger), nil
}

// Unavailable returns a store whose every operation fails with err.
// It stands in for a cache that could not be opened.
func Unavailable(err error, sink notify.Sink, logger *zap.Logger) *Store {
	if err == nil {
		err = errors.New("storage unavailable")
	}
	return newStore(nil, err, sink, logger)
}

func newStore(db *sql.DB, openErr error, sink notify.Sink, logger *zap.Logger) *Store {
	if sink == nil {
		sink = notify.Discard
	}
	return &Store{db: db, openErr: openErr, sink: sink, logger: logging.OrNop(logger)}
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the cached snapshot with page, recorded as the answer to q.
func (s *Store) Save(ctx context.Context, q service.Query, page service.TaskPage) {
	snap := service.Snapshot{Query: q.Normalize(), Page: page}
	if err := s.save(ctx, snap); err != nil {
		s.fail("Error saving tasks", err)
		return
	}
	s.logger.Debug("cache saved", zap.Int("tasks", len(page.Data)), zap.Int("page", snap.Query.Page))
}

func (s *Store) save(ctx context.Context, snap service.Snapshot) error {
	if s.db == nil {
		return s.openErr
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		Key, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Load returns the cached snapshot, or nil when nothing is cached or the
// cache cannot be read.
func (s *Store) Load(ctx context.Context) *service.Snapshot {
	snap, err := s.load(ctx)
	if err != nil {
		s.fail("Error loading tasks", err)
		return nil
	}
	return snap
}

func (s *Store) load(ctx context.Context) (*service.Snapshot, error) {
	if s.db == nil {
		return nil, s.openErr
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, Key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap service.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode cached page: %w", err)
	}
	if snap.Query.Page < 1 || snap.Query.Limit < 1 {
		return nil, errors.New("decode cached page: missing query")
	}
	return &snap, nil
}

// Clear removes the cached page.
func (s *Store) Clear(ctx context.Context) {
	if err := s.clear(ctx); err != nil {
		s.fail("Error clearing tasks", err)
	}
}

func (s *Store) clear(ctx context.Context) error {
	if s.db == nil {
		return s.openErr
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, Key)
	return err
}

func (s *Store) fail(prefix string, err error) {
	s.logger.Warn("cache failure", zap.String("op", prefix), zap.Error(err))
	s.sink.Notify(notify.Error, fmt.Sprintf("%s: %v", prefix, err))
}
