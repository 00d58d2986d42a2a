package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()

	first := NewWriterLock(dir)
	locked, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = first.Unlock() }()

	second := NewWriterLock(dir)
	locked, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "second holder must not acquire the lock")

	require.NoError(t, first.Unlock())

	locked, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, locked, "lock must be acquirable after release")
	require.NoError(t, second.Unlock())
}

func TestWriterLockUnlockIsIdempotent(t *testing.T) {
	l := NewWriterLock(t.TempDir())
	locked, err := l.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
}
