package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipgrep/clipgrep/internal/encode"
	"github.com/clipgrep/clipgrep/internal/search"
	"github.com/clipgrep/clipgrep/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search the existing index without synchronizing it",
		Long: `Search the index for images under the current directory.

Query terms may be free text or paths to example images. Multiple
positional terms and --add terms are averaged; --subtract terms are
averaged and subtracted, steering results away from them.

Examples:
  clipgrep search "a dog on the beach"
  clipgrep search ./example.jpg --subtract "cartoon"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runQuery(cmd.Context(), a, cwd, args, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

// runQuery ranks the index under dir and prints results to stdout.
func runQuery(ctx context.Context, a *app, dir string, args []string, flags searchFlags) error {
	positive := make([]encode.Query, 0, len(args)+len(flags.add))
	for _, q := range args {
		positive = append(positive, encode.Query(q))
	}
	for _, q := range flags.add {
		positive = append(positive, encode.Query(q))
	}
	negative := make([]encode.Query, 0, len(flags.subtract))
	for _, q := range flags.subtract {
		negative = append(negative, encode.Query(q))
	}

	topK := flags.top
	if topK <= 0 {
		topK = a.cfg.Search.TopK
	}

	searcher, err := search.New(a.store, a.encoder, a.scanner)
	if err != nil {
		return err
	}
	results, err := searcher.Search(ctx, dir, positive, negative, topK)
	if err != nil {
		return err
	}

	if !flags.filepathOnly {
		ui.PrintResultHeader()
	}
	for _, r := range results {
		ui.PrintResult(r.Score, r.Path, flags.filepathOnly)
	}
	return nil
}
