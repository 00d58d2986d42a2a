package ui

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	p := NewProgressTracker()

	p.SetTotal(100)
	p.Increment("/photos/a.png")
	p.Increment("/photos/b.png")
	p.AddWarning()

	stats := p.Stats()
	assert.Equal(t, 2, stats.Current)
	assert.Equal(t, 100, stats.Total)
	assert.Equal(t, 1, stats.Warnings)
	assert.Equal(t, "/photos/b.png", stats.LastPath)
	assert.GreaterOrEqual(t, stats.Elapsed.Nanoseconds(), int64(0))
}

func TestProgressTrackerConcurrentUse(t *testing.T) {
	p := NewProgressTracker()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				p.Increment("/x")
				p.SetTotal(j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, p.Stats().Current)
}
