package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore implements Store on a single SQLite database file.
//
// Session semantics: every mutation and read runs inside one
// long-lived transaction. Commit commits it and opens the next one,
// so uncommitted mutations are visible to same-session reads but
// become durable only at Commit. An interrupted run therefore leaves
// the database at the last committed checkpoint, which is what the
// sweep's flag protocol relies on.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	tx     *sql.Tx
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// Open creates or opens the store at path. Empty path opens an
// in-memory store for testing.
func Open(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: the session transaction must always see the
	// same underlying SQLite handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN
	// params may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.begin(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS images (
		filepath     TEXT PRIMARY KEY,
		modified_at  INTEGER NOT NULL,
		size_bytes   INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		vector       BLOB NOT NULL,
		indexing     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_images_content_hash ON images(content_hash);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// GetByPath returns the record for path, or nil if absent.
func (s *SQLiteStore) GetByPath(ctx context.Context, path string) (*ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.tx.QueryRowContext(ctx,
		`SELECT filepath, modified_at, size_bytes, content_hash, vector, indexing
		 FROM images WHERE filepath = ?`, path)
	return scanRecord(row)
}

// GetByHash returns a record with the given content hash, or nil.
func (s *SQLiteStore) GetByHash(ctx context.Context, hash string) (*ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.tx.QueryRowContext(ctx,
		`SELECT filepath, modified_at, size_bytes, content_hash, vector, indexing
		 FROM images WHERE content_hash = ? ORDER BY filepath LIMIT 1`, hash)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*ImageRecord, error) {
	var rec ImageRecord
	var blob []byte
	var indexing int
	err := row.Scan(&rec.FilePath, &rec.ModifiedAt, &rec.SizeBytes, &rec.ContentHash, &blob, &indexing)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.Vector, err = decodeVector(blob)
	if err != nil {
		return nil, err
	}
	rec.Indexing = indexing != 0
	return &rec, nil
}

// Upsert inserts or fully updates a record, clearing its flag.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO images (filepath, modified_at, size_bytes, content_hash, vector, indexing)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT(filepath) DO UPDATE SET
			modified_at = excluded.modified_at,
			size_bytes = excluded.size_bytes,
			content_hash = excluded.content_hash,
			vector = excluded.vector,
			indexing = 0`,
		rec.FilePath, rec.ModifiedAt, rec.SizeBytes, rec.ContentHash, encodeVector(rec.Vector))
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.FilePath, err)
	}
	return nil
}

// UpdatePath rewrites a record's path after a rename. The vector and
// hash are reused; the metadata snapshot is taken from the new file's
// stat, and the flag is cleared (the record is confirmed by the
// rename).
func (s *SQLiteStore) UpdatePath(ctx context.Context, oldPath, newPath string, modifiedAt, sizeBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.tx.ExecContext(ctx,
		`UPDATE images SET filepath = ?, modified_at = ?, size_bytes = ?, indexing = 0
		 WHERE filepath = ?`,
		newPath, modifiedAt, sizeBytes, oldPath)
	if err != nil {
		return fmt.Errorf("failed to update path %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

// FlagDir sets the indexing flag on every record under dir.
func (s *SQLiteStore) FlagDir(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.tx.ExecContext(ctx,
		`UPDATE images SET indexing = 1 WHERE filepath LIKE ? ESCAPE '\'`,
		dirPattern(dir))
	if err != nil {
		return fmt.Errorf("failed to flag records under %s: %w", dir, err)
	}
	return nil
}

// UnflagAll clears the indexing flag store-wide, repairing leftover
// flags from any previously interrupted run.
func (s *SQLiteStore) UnflagAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.tx.ExecContext(ctx, `UPDATE images SET indexing = 0`); err != nil {
		return fmt.Errorf("failed to clear indexing flags: %w", err)
	}
	return nil
}

// UnflagPath clears the indexing flag for one path.
func (s *SQLiteStore) UnflagPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.tx.ExecContext(ctx,
		`UPDATE images SET indexing = 0 WHERE filepath = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to unflag %s: %w", path, err)
	}
	return nil
}

// DeleteFlaggedDir deletes every record under dir still flagged.
func (s *SQLiteStore) DeleteFlaggedDir(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.tx.ExecContext(ctx,
		`DELETE FROM images WHERE indexing = 1 AND filepath LIKE ? ESCAPE '\'`,
		dirPattern(dir))
	if err != nil {
		return fmt.Errorf("failed to delete flagged records under %s: %w", dir, err)
	}
	return nil
}

// ListVectorsDir returns all (path, vector) pairs lexically under dir,
// ordered by path.
func (s *SQLiteStore) ListVectorsDir(ctx context.Context, dir string) ([]PathVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.tx.QueryContext(ctx,
		`SELECT filepath, vector FROM images WHERE filepath LIKE ? ESCAPE '\' ORDER BY filepath`,
		dirPattern(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list vectors under %s: %w", dir, err)
	}
	defer rows.Close()

	var result []PathVector
	for rows.Next() {
		var pv PathVector
		var blob []byte
		if err := rows.Scan(&pv.Path, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		if pv.Vector, err = decodeVector(blob); err != nil {
			return nil, err
		}
		result = append(result, pv)
	}
	return result, rows.Err()
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	if err := s.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Commit flushes the session transaction and opens the next one.
func (s *SQLiteStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return s.begin()
}

// Close discards uncommitted mutations and closes the database.
// Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// dirPattern builds a LIKE pattern matching every path lexically under
// dir. LIKE metacharacters in the directory path itself are escaped.
func dirPattern(dir string) string {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
