// Package cmd provides the CLI commands for clipgrep.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipgrep/clipgrep/pkg/version"
)

// Global flags shared by all commands.
var (
	configPath        string
	debugMode         bool
	offlineMode       bool
	indexingBatchSize int
	excludeDirs       []string
)

// searchFlags are the flags of the default flow and the search
// subcommand.
type searchFlags struct {
	top          int
	add          []string
	subtract     []string
	filepathOnly bool
	noIndexing   bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.top, "top", "t", 0, "Number of results to return (0 = config default)")
	cmd.Flags().StringArrayVarP(&f.add, "add", "a", nil, "Additional positive query term (repeatable)")
	cmd.Flags().StringArrayVarP(&f.subtract, "subtract", "s", nil, "Negative query term to subtract (repeatable)")
	cmd.Flags().BoolVarP(&f.filepathOnly, "filepath-only", "f", false, "Print bare file paths, one per line")
}

// NewRootCmd creates the root command for the clipgrep CLI.
func NewRootCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "clipgrep [flags] <query>...",
		Short: "Search local images by what they show",
		Long: `clipgrep indexes images under the current directory and ranks them
against natural language queries using CLIP embeddings.

The default flow synchronizes the index with the directory tree, then
searches it. Use --no-indexing to search the existing index as-is.

Examples:
  clipgrep "a dog on the beach"
  clipgrep "sunset" --add "mountains" --subtract "people"
  clipgrep "cat" --top 3 --filepath-only
  clipgrep --no-indexing "red car"`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runDefault(cmd.Context(), args, flags)
		},
	}

	cmd.SetVersionTemplate("clipgrep version {{.Version}}\n")

	flags.register(cmd)
	cmd.Flags().BoolVarP(&flags.noIndexing, "no-indexing", "n", false, "Skip index synchronization, search the existing index")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/clipgrep/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&offlineMode, "offline", false, "Use the deterministic offline encoder instead of the CLIP service")
	cmd.PersistentFlags().IntVar(&indexingBatchSize, "indexing-batch-size", 0, "Files encoded per batch (0 = config default)")
	cmd.PersistentFlags().StringArrayVar(&excludeDirs, "exclude-dir", nil, "Directory name to skip, replacing the defaults (repeatable)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

// runDefault is the bare-invocation flow: sweep the current directory
// unless told not to, then search it.
func runDefault(ctx context.Context, args []string, flags searchFlags) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot determine working directory: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !flags.noIndexing {
		if err := runSweep(ctx, a, cwd, true); err != nil {
			return err
		}
	}

	return runQuery(ctx, a, cwd, args, flags)
}
