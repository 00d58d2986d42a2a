package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipgrep/clipgrep/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the index synchronized as images change",
		Long: `Watch a directory tree and re-synchronize the index whenever image
files change. Runs an initial sweep, then sweeps again after each
coalesced burst of filesystem events. Defaults to the current
directory. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				root = args[0]
			}
			return runWatch(cmd.Context(), root, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "How long to wait for follow-up events before sweeping")
	return cmd
}

func runWatch(ctx context.Context, root string, debounce time.Duration) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := runSweep(ctx, a, root, true); err != nil {
		return err
	}

	w, err := watcher.New(a.scanner, watcher.Options{DebounceWindow: debounce})
	if err != nil {
		return err
	}

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Start(ctx, root)
	}()
	defer func() { _ = w.Stop() }()

	fmt.Fprintf(os.Stderr, "watching %s for changes\n", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			slog.Info("changes detected, re-synchronizing",
				slog.Int("events", len(batch)))
			if err := runSweep(ctx, a, root, false); err != nil {
				return err
			}
		}
	}
}
