package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func awaitBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted before timeout")
		return nil
	}
}

func TestDebouncerBatchesBurst(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(event("/a.png", OpCreate))
	d.Add(event("/b.png", OpModify))
	d.Add(event("/c.png", OpDelete))

	batch := awaitBatch(t, d)
	assert.Len(t, batch, 3)
}

func TestDebouncerCoalescesSamePath(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want Operation
	}{
		{"create then modify stays create", []Operation{OpCreate, OpModify}, OpCreate},
		{"modify then delete becomes delete", []Operation{OpModify, OpDelete}, OpDelete},
		{"delete then create becomes modify", []Operation{OpDelete, OpCreate}, OpModify},
		{"repeated modify stays modify", []Operation{OpModify, OpModify, OpModify}, OpModify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20*time.Millisecond, 4)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(event("/x.png", op))
			}

			batch := awaitBatch(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncerCreateDeleteCancelsOut(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(event("/ghost.png", OpCreate))
	d.Add(event("/ghost.png", OpDelete))
	d.Add(event("/real.png", OpModify))

	batch := awaitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/real.png", batch[0].Path)
}

func TestDebouncerStopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour, 4)
	d.Add(event("/a.png", OpCreate))
	d.Stop()
	d.Stop()

	_, open := <-d.Output()
	assert.False(t, open)

	// Adds after Stop are ignored without panicking.
	d.Add(event("/b.png", OpCreate))
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
}
