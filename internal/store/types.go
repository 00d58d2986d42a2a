// Package store persists per-image index records in SQLite.
// It is the single source of truth for the synchronization sweep: the
// indexing flag column is durable crash-recovery state, not an
// in-memory set.
package store

import (
	"context"
)

// ImageRecord is the stored unit of index state for one file.
type ImageRecord struct {
	// FilePath is the absolute path, unique across the store.
	FilePath string

	// ModifiedAt is the mtime in Unix nanoseconds at last successful
	// extraction or confirmation. Stored as an integer so the change
	// detector's bit-equality contract is exact.
	ModifiedAt int64

	// SizeBytes is the file size at last successful extraction.
	SizeBytes int64

	// ContentHash is the digest of the file bytes at last extraction.
	ContentHash string

	// Vector is the feature vector, opaque to the store.
	Vector []float32

	// Indexing is true while the record is unconfirmed during an
	// in-progress sweep.
	Indexing bool
}

// PathVector pairs a stored path with its feature vector, as returned
// by subtree listings for the ranker.
type PathVector struct {
	Path   string
	Vector []float32
}

// Store is keyed persistent storage of ImageRecords. Mutations are
// visible to subsequent reads in the same session but durable only
// after Commit.
type Store interface {
	// GetByPath returns the record for an absolute path, or nil if absent.
	GetByPath(ctx context.Context, path string) (*ImageRecord, error)

	// GetByHash returns a record with the given content hash, or nil.
	// When several paths share a hash the lexically smallest path wins,
	// keeping rename detection deterministic.
	GetByHash(ctx context.Context, hash string) (*ImageRecord, error)

	// Upsert inserts or fully updates a record. The stored record's
	// indexing flag is always cleared: a freshly written record is
	// confirmed by construction.
	Upsert(ctx context.Context, rec *ImageRecord) error

	// UpdatePath rewrites a record's path and metadata snapshot after a
	// rename, reusing its vector and hash, and clears its flag.
	UpdatePath(ctx context.Context, oldPath, newPath string, modifiedAt, sizeBytes int64) error

	// FlagDir sets the indexing flag on every record under dir.
	FlagDir(ctx context.Context, dir string) error

	// UnflagAll clears the indexing flag store-wide.
	UnflagAll(ctx context.Context) error

	// UnflagPath clears the indexing flag for one path.
	UnflagPath(ctx context.Context, path string) error

	// DeleteFlaggedDir deletes every record under dir still flagged.
	DeleteFlaggedDir(ctx context.Context, dir string) error

	// ListVectorsDir returns all (path, vector) pairs lexically under dir.
	ListVectorsDir(ctx context.Context, dir string) ([]PathVector, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// Commit flushes the current session transaction to disk.
	Commit() error

	// Close discards uncommitted mutations and releases the database.
	Close() error
}
