// Package scanner discovers indexable image files under a root
// directory, applying directory exclusion and extension filters.
// Traversal is lexical (filepath.WalkDir), so repeated runs over a
// static tree see the same entries in the same order.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one discovered image file.
type Entry struct {
	// Path is the absolute file path.
	Path string

	// DirEntry is the traversal handle; Info() stats the file lazily.
	DirEntry fs.DirEntry
}

// Options configures a traversal.
type Options struct {
	// ExcludeDirs are directory names skipped anywhere below the root.
	ExcludeDirs []string

	// Extensions are accepted file extensions (lower-case, with dot).
	Extensions []string
}

// Scanner walks image trees. Each traversal holds its own state, so
// independent traversals over the same root may run concurrently.
type Scanner struct {
	excludeDirs map[string]struct{}
	extensions  map[string]struct{}
}

// New creates a Scanner with the given filters.
func New(opts Options) *Scanner {
	s := &Scanner{
		excludeDirs: make(map[string]struct{}, len(opts.ExcludeDirs)),
		extensions:  make(map[string]struct{}, len(opts.Extensions)),
	}
	for _, d := range opts.ExcludeDirs {
		s.excludeDirs[d] = struct{}{}
	}
	for _, e := range opts.Extensions {
		s.extensions[strings.ToLower(e)] = struct{}{}
	}
	return s
}

// Scan streams matching entries reachable from root. The channel is
// closed when traversal completes or ctx is cancelled. Directories we
// cannot read are skipped silently, matching the best-effort contract.
func (s *Scanner) Scan(ctx context.Context, root string) (<-chan Entry, error) {
	absRoot, err := s.checkRoot(root)
	if err != nil {
		return nil, err
	}

	entries := make(chan Entry, 64)
	go func() {
		defer close(entries)
		_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != absRoot && s.Excluded(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.matchesName(d.Name()) {
				return nil
			}
			select {
			case entries <- Entry{Path: path, DirEntry: d}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()

	return entries, nil
}

// Count walks the tree and returns the number of matching entries.
// It exists solely to produce progress totals; progress is reported
// through fn (may be nil) every countReportInterval entries.
func (s *Scanner) Count(ctx context.Context, root string, fn func(n int)) (int, error) {
	absRoot, err := s.checkRoot(root)
	if err != nil {
		return 0, err
	}

	n := 0
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != absRoot && s.Excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.matchesName(d.Name()) {
			n++
			if fn != nil && n%countReportInterval == 0 {
				fn(n)
			}
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		return n, err
	}
	if fn != nil {
		fn(n)
	}
	return n, err
}

// countReportInterval is how often Count reports intermediate totals.
const countReportInterval = 256

// Excluded reports whether any segment of path is an excluded
// directory name. The ranker reuses this as a defense against records
// that should never have been indexed.
func (s *Scanner) Excluded(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if _, ok := s.excludeDirs[part]; ok {
			return true
		}
	}
	return false
}

// Matches reports whether the file at path would be picked up by a
// traversal: accepted extension and no excluded segment.
func (s *Scanner) Matches(path string) bool {
	return s.matchesName(filepath.Base(path)) && !s.Excluded(path)
}

// matchesName reports whether a filename has an accepted extension.
func (s *Scanner) matchesName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := s.extensions[ext]
	return ok
}

func (s *Scanner) checkRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root path is not a directory: %s", absRoot)
	}
	return absRoot, nil
}
