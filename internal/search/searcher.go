// Package search ranks indexed images against text and image queries.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/clipgrep/clipgrep/internal/encode"
	clierrors "github.com/clipgrep/clipgrep/internal/errors"
	"github.com/clipgrep/clipgrep/internal/scanner"
	"github.com/clipgrep/clipgrep/internal/store"
)

// Result is one ranked match.
type Result struct {
	Path  string
	Score float32
}

// Searcher loads candidate vectors for a directory and ranks them.
type Searcher struct {
	store   store.Store
	encoder encode.Encoder
	scanner *scanner.Scanner
}

// New creates a Searcher. The scanner supplies the exclusion filter, so
// records indexed before a directory was added to the exclusion list
// never surface in results.
func New(st store.Store, enc encode.Encoder, sc *scanner.Scanner) (*Searcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if enc == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if sc == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	return &Searcher{store: st, encoder: enc, scanner: sc}, nil
}

// Search ranks every indexed image under dir against the combined
// query and returns the top matches. topK <= 0 returns all matches.
//
// Filtering happens after ranking, lazily: the ranked list is walked
// from the top and excluded entries are dropped until topK survivors
// are collected. Image files used as query terms are themselves
// excluded, so querying by example never returns the example.
func (s *Searcher) Search(ctx context.Context, dir string, positive, negative []encode.Query, topK int) ([]Result, error) {
	if len(positive) == 0 {
		return nil, clierrors.New(clierrors.ErrCodeInvalidQuery, "at least one query is required", nil)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, clierrors.New(clierrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve directory %s", dir), err)
	}

	start := time.Now()
	candidates, err := s.store.ListVectorsDir(ctx, absDir)
	if err != nil {
		return nil, clierrors.StoreReadError(fmt.Sprintf("failed to load vectors under %s", absDir), err)
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	queryFiles := queryFileSet(positive, negative)

	vectors := make([][]float32, len(candidates))
	for i := range candidates {
		vectors[i] = candidates[i].Vector
	}

	ranked, err := encode.Rank(ctx, s.encoder, vectors, positive, negative)
	if err != nil {
		// Coded failures (query encoding, dimension mismatch) keep
		// their own code; anything else is a generic search failure.
		if clierrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, clierrors.Wrap(clierrors.ErrCodeSearchFailed, err)
	}

	capHint := len(ranked)
	if topK > 0 && topK < capHint {
		capHint = topK
	}
	results := make([]Result, 0, capHint)
	for _, sim := range ranked {
		path := candidates[sim.Index].Path
		if _, isQuery := queryFiles[path]; isQuery {
			continue
		}
		if s.scanner.Excluded(path) {
			continue
		}
		results = append(results, Result{Path: path, Score: sim.Score})
		if topK > 0 && len(results) >= topK {
			break
		}
	}

	slog.Debug("search complete",
		slog.String("dir", absDir),
		slog.Int("candidates", len(candidates)),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// queryFileSet collects the absolute paths of query terms that name
// image files on disk.
func queryFileSet(positive, negative []encode.Query) map[string]struct{} {
	set := make(map[string]struct{})
	for _, q := range positive {
		if abs, ok := q.FilePath(); ok {
			set[abs] = struct{}{}
		}
	}
	for _, q := range negative {
		if abs, ok := q.FilePath(); ok {
			set[abs] = struct{}{}
		}
	}
	return set
}
