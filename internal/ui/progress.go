// Package ui renders indexing progress and search results on the
// terminal. All progress output goes to stderr; stdout carries only
// search results.
package ui

import (
	"sync"
	"time"
)

// ProgressStats is a snapshot of sweep progress.
type ProgressStats struct {
	Current  int
	Total    int // 0 while the counting traversal is still running
	Warnings int
	Elapsed  time.Duration
	LastPath string
}

// ProgressTracker accumulates progress state. It is safe for
// concurrent use: the counting traversal updates the total while the
// reconciliation loop updates the current count.
type ProgressTracker struct {
	mu        sync.Mutex
	current   int
	total     int
	warnings  int
	lastPath  string
	startTime time.Time
}

// NewProgressTracker creates a tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{startTime: time.Now()}
}

// SetTotal updates the estimated total. The estimate is advisory and
// may lag behind the current count while counting is in flight.
func (p *ProgressTracker) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Increment records one processed entry.
func (p *ProgressTracker) Increment(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	if path != "" {
		p.lastPath = path
	}
}

// AddWarning records a non-fatal per-file or per-batch failure.
func (p *ProgressTracker) AddWarning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings++
}

// Stats returns the current snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressStats{
		Current:  p.current,
		Total:    p.total,
		Warnings: p.warnings,
		Elapsed:  time.Since(p.startTime),
		LastPath: p.lastPath,
	}
}
