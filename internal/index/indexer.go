// Package index implements the mark-and-sweep synchronization sweep
// that reconciles the image store against the filesystem.
//
// The protocol, per run over a root directory:
//
//  1. Clear the indexing flag store-wide (repairs flags left by any
//     interrupted run, whatever root it used).
//  2. Flag every record under root and commit: everything known is
//     presumed stale until observed on disk.
//  3. Stream the tree. Unchanged files are unflagged in place; changed
//     or new files accumulate into batches that are encoded and
//     reconciled as they fill. Commits are issued at a fixed entry
//     interval to bound transaction growth.
//  4. Flush the trailing partial batch, commit, then delete every
//     record under root still flagged: those files were not observed,
//     so they were deleted or moved away.
//
// A crash at any point leaves the store at its last committed
// checkpoint; the next run's step 1 makes the leftover flags harmless.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipgrep/clipgrep/internal/encode"
	clierrors "github.com/clipgrep/clipgrep/internal/errors"
	"github.com/clipgrep/clipgrep/internal/imaging"
	"github.com/clipgrep/clipgrep/internal/scanner"
	"github.com/clipgrep/clipgrep/internal/store"
)

// Progress receives advisory progress updates during a sweep.
// Implementations must be safe for concurrent use: the counting
// traversal publishes totals while the main loop publishes increments.
type Progress interface {
	SetTotal(total int)
	Increment(path string)
	AddWarning()
}

// nopProgress is used when no progress sink is configured.
type nopProgress struct{}

func (nopProgress) SetTotal(int)     {}
func (nopProgress) Increment(string) {}
func (nopProgress) AddWarning()      {}

// Config tunes a sweep.
type Config struct {
	// BatchSize is the number of changed files encoded per batch.
	BatchSize int

	// CommitInterval is the number of scanned entries between
	// intermediate commits.
	CommitInterval int
}

// Summary is the outcome of one sweep.
type Summary struct {
	// Scanned is the number of entries the traversal yielded.
	Scanned int

	// Unchanged is the number of files confirmed without re-encoding.
	Unchanged int

	// Indexed is the number of records written with fresh vectors.
	Indexed int

	// Renamed is the number of records updated by content-hash rename
	// detection, without re-encoding.
	Renamed int

	// Warnings counts per-file and per-batch recovered failures.
	Warnings int

	// Duration is the total sweep time.
	Duration time.Duration
}

// Indexer drives the sweep.
type Indexer struct {
	store    store.Store
	encoder  encode.Encoder
	scanner  *scanner.Scanner
	cfg      Config
	progress Progress
}

// New creates an Indexer. progress may be nil.
func New(st store.Store, enc encode.Encoder, sc *scanner.Scanner, cfg Config, progress Progress) (*Indexer, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if enc == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if sc == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.CommitInterval < 1 {
		return nil, fmt.Errorf("commit interval must be >= 1, got %d", cfg.CommitInterval)
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &Indexer{
		store:    st,
		encoder:  enc,
		scanner:  sc,
		cfg:      cfg,
		progress: progress,
	}, nil
}

// candidate is a file queued for encoding.
type candidate struct {
	path string
	meta fileMeta
}

// outcomeKind tags the result of one file inside a batch flush.
type outcomeKind int

const (
	outcomeIndexed outcomeKind = iota
	outcomeRenamed
	outcomeDecodeFailed
	outcomeEncodeFailed
)

// fileOutcome is the per-file result of a batch flush. Failures are
// data here, not control flow; only store errors abort the flush.
type fileOutcome struct {
	path string
	kind outcomeKind
	err  error
}

// EnsureIndex synchronizes the store with the tree under root.
// Per-file and per-batch failures are recovered and counted as
// warnings; store failures abort the run, leaving the store at its
// last committed state.
func (ix *Indexer) EnsureIndex(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, clierrors.New(clierrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve root %s", root), err)
	}

	// Both traversals stop through this context, so an abort on a store
	// error mid-loop unwinds the walker blocked on the entries channel
	// instead of leaking it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary := &Summary{}

	// Steps 1-2: global unflag, local flag, durable checkpoint.
	if err := ix.store.UnflagAll(ctx); err != nil {
		return nil, clierrors.StoreWriteError("failed to clear stale flags", err)
	}
	if err := ix.store.FlagDir(ctx, absRoot); err != nil {
		return nil, clierrors.StoreWriteError("failed to flag records", err)
	}
	if err := ix.store.Commit(); err != nil {
		return nil, clierrors.StoreWriteError("failed to commit flags", err)
	}

	// Best-effort counting traversal for progress totals. It mutates
	// nothing; its result is advisory. Joined before return.
	var counter errgroup.Group
	counter.Go(func() error {
		total, countErr := ix.scanner.Count(ctx, absRoot, ix.progress.SetTotal)
		if countErr != nil {
			slog.Debug("counting traversal stopped early", slog.String("error", countErr.Error()))
			return nil
		}
		ix.progress.SetTotal(total)
		return nil
	})
	defer func() {
		cancel()
		_ = counter.Wait()
	}()

	entries, err := ix.scanner.Scan(ctx, absRoot)
	if err != nil {
		return nil, clierrors.New(clierrors.ErrCodeInvalidPath, err.Error(), err)
	}

	// Step 3: streaming reconciliation.
	var batch []candidate
	for entry := range entries {
		rec, err := ix.store.GetByPath(ctx, entry.Path)
		if err != nil {
			return nil, clierrors.StoreReadError(fmt.Sprintf("lookup failed for %s", entry.Path), err)
		}

		// Intermediate commit at a fixed entry interval, regardless of
		// which branch each entry takes.
		if summary.Scanned%ix.cfg.CommitInterval == 0 {
			if err := ix.store.Commit(); err != nil {
				return nil, clierrors.StoreWriteError("intermediate commit failed", err)
			}
		}
		summary.Scanned++
		ix.progress.Increment(entry.Path)

		info, err := entry.DirEntry.Info()
		if err != nil {
			statErr := clierrors.StatError(entry.Path, err)
			slog.Warn("cannot stat file, skipping",
				slog.String("path", entry.Path), slog.String("error", statErr.Error()))
			summary.Warnings++
			ix.progress.AddWarning()
			continue
		}
		meta := metaOf(info)

		if rec != nil && unchanged(rec, meta) {
			// Confirmed present and unmodified: no extraction needed.
			if err := ix.store.UnflagPath(ctx, entry.Path); err != nil {
				return nil, clierrors.StoreWriteError(fmt.Sprintf("unflag failed for %s", entry.Path), err)
			}
			summary.Unchanged++
			continue
		}

		batch = append(batch, candidate{path: entry.Path, meta: meta})
		if len(batch) >= ix.cfg.BatchSize {
			outcomes, err := ix.flushBatch(ctx, batch)
			if err != nil {
				return nil, err
			}
			ix.tally(outcomes, summary)
			batch = nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 4: trailing flush.
	if len(batch) > 0 {
		outcomes, err := ix.flushBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		ix.tally(outcomes, summary)
	}

	// Step 5: final commit.
	if err := ix.store.Commit(); err != nil {
		return nil, clierrors.StoreWriteError("final commit failed", err)
	}

	_ = counter.Wait()

	// Step 6: sweep. Records still flagged were not observed on disk.
	// Note that files whose batch failed encoding are deleted here too
	// even though they still exist; a later run re-indexes them from
	// scratch.
	if err := ix.store.DeleteFlaggedDir(ctx, absRoot); err != nil {
		return nil, clierrors.StoreWriteError("sweep delete failed", err)
	}
	if err := ix.store.Commit(); err != nil {
		return nil, clierrors.StoreWriteError("sweep commit failed", err)
	}

	summary.Duration = time.Since(start)
	slog.Info("sweep complete",
		slog.String("root", absRoot),
		slog.Int("scanned", summary.Scanned),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("indexed", summary.Indexed),
		slog.Int("renamed", summary.Renamed),
		slog.Int("warnings", summary.Warnings),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

// tally folds per-file outcomes into the run summary.
func (ix *Indexer) tally(outcomes []fileOutcome, summary *Summary) {
	for _, o := range outcomes {
		switch o.kind {
		case outcomeIndexed:
			summary.Indexed++
		case outcomeRenamed:
			summary.Renamed++
		case outcomeDecodeFailed, outcomeEncodeFailed:
			summary.Warnings++
			ix.progress.AddWarning()
		}
	}
}

// flushBatch runs one extraction + reconciliation unit and returns an
// outcome per input file. Decode and encode failures are outcomes, not
// errors; only store failures return an error and abort the run.
func (ix *Indexer) flushBatch(ctx context.Context, batch []candidate) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, 0, len(batch))

	// Decode probe: files that are not readable images leave the batch
	// before extraction.
	images := make([]*imaging.Image, 0, len(batch))
	kept := make([]candidate, 0, len(batch))
	hashes := make([]string, 0, len(batch))
	for _, c := range batch {
		img, err := imaging.ReadImage(c.path)
		if err != nil {
			decodeErr := clierrors.DecodeError(c.path, err)
			slog.Warn("skipping undecodable file",
				slog.String("path", c.path), slog.String("error", decodeErr.Error()))
			outcomes = append(outcomes, fileOutcome{path: c.path, kind: outcomeDecodeFailed, err: decodeErr})
			continue
		}
		images = append(images, img)
		kept = append(kept, c)
		hashes = append(hashes, imaging.Hash(img.Data))
	}
	// Rename and duplicate pass. Content already known to the store
	// keeps its stored vector; only genuinely new content is encoded.
	var pendingImages []*imaging.Image
	var pending []candidate
	var pendingHashes []string
	for i, c := range kept {
		existing, err := ix.store.GetByHash(ctx, hashes[i])
		if err != nil {
			return nil, clierrors.StoreReadError(fmt.Sprintf("hash lookup failed for %s", c.path), err)
		}

		if existing != nil && existing.FilePath != c.path {
			// Same content under a new path: a rename. Rewrite the
			// path, reuse the stored vector and hash.
			if err := ix.store.UpdatePath(ctx, existing.FilePath, c.path, c.meta.modifiedAt, c.meta.sizeBytes); err != nil {
				return nil, clierrors.StoreWriteError(fmt.Sprintf("rename update failed for %s", c.path), err)
			}
			outcomes = append(outcomes, fileOutcome{path: c.path, kind: outcomeRenamed})
			continue
		}

		if existing != nil {
			// Same path, same content, changed metadata: refresh the
			// snapshot without re-encoding.
			rec := &store.ImageRecord{
				FilePath:    c.path,
				ModifiedAt:  c.meta.modifiedAt,
				SizeBytes:   c.meta.sizeBytes,
				ContentHash: hashes[i],
				Vector:      existing.Vector,
			}
			if err := ix.store.Upsert(ctx, rec); err != nil {
				return nil, clierrors.StoreWriteError(fmt.Sprintf("upsert failed for %s", c.path), err)
			}
			outcomes = append(outcomes, fileOutcome{path: c.path, kind: outcomeIndexed})
			continue
		}

		pendingImages = append(pendingImages, images[i])
		pending = append(pending, c)
		pendingHashes = append(pendingHashes, hashes[i])
	}
	if len(pendingImages) == 0 {
		return outcomes, nil
	}

	vectors, err := ix.encoder.EncodeImages(ctx, pendingImages)
	if err != nil {
		// The batch fails as a unit. Its files stay flagged: unless a
		// later run gets to them first they are removed at sweep time
		// and re-indexed from scratch afterwards.
		batchErr := clierrors.EncodeBatchError(len(pendingImages), err)
		slog.Warn("encoding batch failed, skipping batch",
			slog.Int("batch_size", len(pendingImages)), slog.String("error", batchErr.Error()))
		for _, c := range pending {
			outcomes = append(outcomes, fileOutcome{path: c.path, kind: outcomeEncodeFailed, err: batchErr})
		}
		return outcomes, nil
	}

	for i, c := range pending {
		rec := &store.ImageRecord{
			FilePath:    c.path,
			ModifiedAt:  c.meta.modifiedAt,
			SizeBytes:   c.meta.sizeBytes,
			ContentHash: pendingHashes[i],
			Vector:      vectors[i],
		}
		if err := ix.store.Upsert(ctx, rec); err != nil {
			return nil, clierrors.StoreWriteError(fmt.Sprintf("upsert failed for %s", c.path), err)
		}
		outcomes = append(outcomes, fileOutcome{path: c.path, kind: outcomeIndexed})
	}

	return outcomes, nil
}
