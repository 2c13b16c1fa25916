package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sweepInterval controls how often expired rows are purged in the
// background. Expired rows are also filtered on read, so the sweep only
// bounds disk growth.
const sweepInterval = 5 * time.Minute

// SQLiteStore implements Store on a single SQLite database file.
//
// Expiry is stored as a unix-nanosecond column. A zero expires_at means
// the entry never expires.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSQLiteStore opens (or creates) the database at path and runs the
// schema migration. The parent directory is created if needed.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, fmt.Errorf("kvstore: path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("kvstore: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("kvstore: pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_entries(expires_at);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: migration: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.sweepLoop()
	return s, nil
}

// Get returns the value for key, treating expired entries as absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %q: %w", key, err)
	}

	if expiresAt != 0 && expiresAt <= time.Now().UnixNano() {
		// Lazy expiry. The sweep will remove the row eventually; delete
		// now so repeat lookups stay cheap.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

// Put stores value under key. A ttl of zero or less means no expiry.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("kvstore: put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	return nil
}

// Close stops the background sweep and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
	return s.db.Close()
}

func (s *SQLiteStore) sweepLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			res, err := s.db.Exec(
				`DELETE FROM kv_entries WHERE expires_at != 0 AND expires_at <= ?`,
				time.Now().UnixNano(),
			)
			if err != nil {
				s.logger.Warn("expired entry sweep failed", zap.Error(err))
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 {
				s.logger.Debug("swept expired entries", zap.Int64("count", n))
			}
		}
	}
}
