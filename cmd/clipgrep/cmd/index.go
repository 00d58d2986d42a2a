package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipgrep/clipgrep/internal/index"
	"github.com/clipgrep/clipgrep/internal/ui"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [dir]",
		Short: "Synchronize the index with a directory tree",
		Long: `Synchronize the image index with the directory tree.

New and modified images are encoded and stored; renamed images are
detected by content hash and updated without re-encoding; images no
longer on disk are removed from the index. Defaults to the current
directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				root = args[0]
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runSweep(cmd.Context(), a, root, true)
		},
	}
}

// runSweep runs one synchronization sweep over root, rendering
// progress on stderr when showProgress is set.
func runSweep(ctx context.Context, a *app, root string, showProgress bool) error {
	tracker := ui.NewProgressTracker()

	ix, err := index.New(a.store, a.encoder, a.scanner, index.Config{
		BatchSize:      a.cfg.Index.BatchSize,
		CommitInterval: a.cfg.Index.CommitInterval,
	}, tracker)
	if err != nil {
		return err
	}

	var renderer *ui.LineRenderer
	var done chan struct{}
	if showProgress {
		renderer = ui.NewLineRenderer()
		renderer.Start()

		done = make(chan struct{})
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					renderer.Render(tracker.Stats())
				}
			}
		}()
	}

	summary, err := ix.EnsureIndex(ctx, root)

	if showProgress {
		close(done)
		renderer.Done(tracker.Stats())
	}
	if err != nil {
		return err
	}

	slog.Debug("index command finished",
		slog.Int("indexed", summary.Indexed),
		slog.Int("renamed", summary.Renamed),
		slog.Int("unchanged", summary.Unchanged))
	return nil
}
