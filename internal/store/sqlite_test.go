package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(path, hash string) *ImageRecord {
	return &ImageRecord{
		FilePath:    path,
		ModifiedAt:  1700000000000000000,
		SizeBytes:   1234,
		ContentHash: hash,
		Vector:      []float32{0.1, 0.2, 0.3},
	}
}

func TestUpsertAndGetByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("/photos/a.png", "hash-a")
	require.NoError(t, s.Upsert(ctx, rec))

	got, err := s.GetByPath(ctx, "/photos/a.png")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.FilePath, got.FilePath)
	assert.Equal(t, rec.ModifiedAt, got.ModifiedAt)
	assert.Equal(t, rec.SizeBytes, got.SizeBytes)
	assert.Equal(t, rec.ContentHash, got.ContentHash)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.False(t, got.Indexing)

	got, err = s.GetByPath(ctx, "/photos/missing.png")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertReplacesAndClearsFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testRecord("/photos/a.png", "hash-1")))
	require.NoError(t, s.FlagDir(ctx, "/photos"))

	updated := testRecord("/photos/a.png", "hash-2")
	updated.ModifiedAt = 1800000000000000000
	updated.Vector = []float32{9, 9, 9}
	require.NoError(t, s.Upsert(ctx, updated))

	got, err := s.GetByPath(ctx, "/photos/a.png")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash-2", got.ContentHash)
	assert.Equal(t, []float32{9, 9, 9}, got.Vector)
	assert.False(t, got.Indexing, "upsert must clear the indexing flag")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetByHashPicksLexicallySmallestPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testRecord("/photos/b.png", "dup")))
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/a.png", "dup")))

	got, err := s.GetByHash(ctx, "dup")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/photos/a.png", got.FilePath)

	got, err = s.GetByHash(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFlagLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testRecord("/photos/a.png", "a")))
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/sub/b.png", "b")))
	require.NoError(t, s.Upsert(ctx, testRecord("/other/c.png", "c")))

	// FlagDir only touches records lexically under the directory.
	require.NoError(t, s.FlagDir(ctx, "/photos"))
	for path, want := range map[string]bool{
		"/photos/a.png":     true,
		"/photos/sub/b.png": true,
		"/other/c.png":      false,
	} {
		got, err := s.GetByPath(ctx, path)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.Indexing, path)
	}

	// UnflagPath clears a single record.
	require.NoError(t, s.UnflagPath(ctx, "/photos/a.png"))
	got, err := s.GetByPath(ctx, "/photos/a.png")
	require.NoError(t, err)
	assert.False(t, got.Indexing)

	// DeleteFlaggedDir removes only still-flagged records under dir.
	require.NoError(t, s.DeleteFlaggedDir(ctx, "/photos"))
	got, err = s.GetByPath(ctx, "/photos/sub/b.png")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.GetByPath(ctx, "/photos/a.png")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = s.GetByPath(ctx, "/other/c.png")
	require.NoError(t, err)
	assert.NotNil(t, got)

	// UnflagAll repairs leftover flags everywhere.
	require.NoError(t, s.FlagDir(ctx, "/other"))
	require.NoError(t, s.UnflagAll(ctx))
	got, err = s.GetByPath(ctx, "/other/c.png")
	require.NoError(t, err)
	assert.False(t, got.Indexing)
}

func TestDirMatchingIsPrefixExact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// /photos2 is a sibling, not a child, of /photos.
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/a.png", "a")))
	require.NoError(t, s.Upsert(ctx, testRecord("/photos2/b.png", "b")))

	require.NoError(t, s.FlagDir(ctx, "/photos"))
	got, err := s.GetByPath(ctx, "/photos2/b.png")
	require.NoError(t, err)
	assert.False(t, got.Indexing)

	pvs, err := s.ListVectorsDir(ctx, "/photos")
	require.NoError(t, err)
	require.Len(t, pvs, 1)
	assert.Equal(t, "/photos/a.png", pvs[0].Path)
}

func TestDirMatchingEscapesLikeMetacharacters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// An underscore in the directory name must match literally, not as
	// a LIKE wildcard.
	require.NoError(t, s.Upsert(ctx, testRecord("/data/my_dir/a.png", "a")))
	require.NoError(t, s.Upsert(ctx, testRecord("/data/myXdir/b.png", "b")))

	require.NoError(t, s.FlagDir(ctx, "/data/my_dir"))
	got, err := s.GetByPath(ctx, "/data/myXdir/b.png")
	require.NoError(t, err)
	assert.False(t, got.Indexing)
	got, err = s.GetByPath(ctx, "/data/my_dir/a.png")
	require.NoError(t, err)
	assert.True(t, got.Indexing)
}

func TestUpdatePathPreservesVectorAndClearsFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("/photos/old.png", "same-hash")
	require.NoError(t, s.Upsert(ctx, rec))
	require.NoError(t, s.FlagDir(ctx, "/photos"))

	require.NoError(t, s.UpdatePath(ctx, "/photos/old.png", "/photos/new.png", 1900000000000000000, 4321))

	old, err := s.GetByPath(ctx, "/photos/old.png")
	require.NoError(t, err)
	assert.Nil(t, old)

	got, err := s.GetByPath(ctx, "/photos/new.png")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.Equal(t, "same-hash", got.ContentHash)
	assert.Equal(t, int64(1900000000000000000), got.ModifiedAt)
	assert.Equal(t, int64(4321), got.SizeBytes)
	assert.False(t, got.Indexing)
}

func TestListVectorsDirOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testRecord("/photos/c.png", "c")))
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/a.png", "a")))
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/b.png", "b")))

	pvs, err := s.ListVectorsDir(ctx, "/photos")
	require.NoError(t, err)
	require.Len(t, pvs, 3)
	assert.Equal(t, "/photos/a.png", pvs[0].Path)
	assert.Equal(t, "/photos/b.png", pvs[1].Path)
	assert.Equal(t, "/photos/c.png", pvs[2].Path)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, pvs[0].Vector)
}

func TestCommitDurability(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	// Uncommitted mutations are rolled back on close.
	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/lost.png", "lost")))
	require.NoError(t, s.Close())

	s, err = Open(dbPath)
	require.NoError(t, err)
	got, err := s.GetByPath(ctx, "/photos/lost.png")
	require.NoError(t, err)
	assert.Nil(t, got, "uncommitted record must not survive close")

	// Committed mutations survive.
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/kept.png", "kept")))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Upsert(ctx, testRecord("/photos/lost2.png", "lost2")))
	require.NoError(t, s.Close())

	s, err = Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err = s.GetByPath(ctx, "/photos/kept.png")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = s.GetByPath(ctx, "/photos/lost2.png")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionReadsSeeUncommittedWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testRecord("/photos/a.png", "a")))

	// No Commit yet, but the same session must see the write.
	got, err := s.GetByPath(ctx, "/photos/a.png")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GetByPath(context.Background(), "/x")
	assert.Error(t, err)
}

func TestVectorCodecRoundtrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.14159}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	empty, err := decodeVector(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
