package watcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipgrep/clipgrep/internal/scanner"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	sc := scanner.New(scanner.Options{
		ExcludeDirs: []string{"node_modules"},
		Extensions:  []string{".png"},
	})
	w, err := New(sc, Options{})
	require.NoError(t, err)
	return w
}

func TestWatcherEmitErrorDelivers(t *testing.T) {
	w := newTestWatcher(t)
	defer func() { _ = w.Stop() }()

	w.emitError(errors.New("transient"))

	select {
	case err := <-w.Errors():
		assert.EqualError(t, err, "transient")
	default:
		t.Fatal("error not delivered")
	}
}

func TestWatcherErrorAfterStopIsDropped(t *testing.T) {
	w := newTestWatcher(t)
	require.NoError(t, w.Stop())

	// A late error from the event loop must not hit the closed channel.
	w.emitError(errors.New("late inotify error"))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := newTestWatcher(t)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, open := <-w.Errors()
	assert.False(t, open)
}
