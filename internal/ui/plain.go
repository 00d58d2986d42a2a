package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// renderInterval throttles progress redraws.
const renderInterval = 100 * time.Millisecond

// LineRenderer draws single-line progress updates. On a TTY the line
// is redrawn in place; otherwise nothing is printed between start and
// summary, keeping piped output clean.
type LineRenderer struct {
	out        io.Writer
	tty        bool
	lastRender time.Time
}

// NewLineRenderer creates a renderer writing to stderr.
func NewLineRenderer() *LineRenderer {
	return &LineRenderer{
		out: os.Stderr,
		tty: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Start prints the sweep banner.
func (r *LineRenderer) Start() {
	fmt.Fprintln(r.out, dimStyle.Render(
		"checking images in the current directory for changes; use --no-indexing to skip"))
}

// Render draws a progress snapshot, throttled.
func (r *LineRenderer) Render(stats ProgressStats) {
	if !r.tty {
		return
	}
	now := time.Now()
	if now.Sub(r.lastRender) < renderInterval {
		return
	}
	r.lastRender = now

	if stats.Total > 0 {
		fmt.Fprintf(r.out, "\r\033[K%s", dimStyle.Render(
			fmt.Sprintf("indexed %d/%d images", stats.Current, stats.Total)))
	} else {
		fmt.Fprintf(r.out, "\r\033[K%s", dimStyle.Render(
			fmt.Sprintf("indexed %d images", stats.Current)))
	}
}

// Done clears the progress line and prints a summary.
func (r *LineRenderer) Done(stats ProgressStats) {
	if r.tty {
		fmt.Fprint(r.out, "\r\033[K")
	}
	summary := fmt.Sprintf("indexed %d images in %s", stats.Current, stats.Elapsed.Round(time.Millisecond))
	if stats.Warnings > 0 {
		summary += warnStyle.Render(fmt.Sprintf(" (%d warnings, see log)", stats.Warnings))
	}
	fmt.Fprintln(r.out, summary)
}

// PrintResult writes one search result line to stdout.
// With filepathOnly set, only the bare path is printed.
func PrintResult(score float32, path string, filepathOnly bool) {
	if filepathOnly {
		fmt.Println(path)
		return
	}
	fmt.Printf("%s\t%s\n", scoreStyle.Render(fmt.Sprintf("%.3f", score)), pathStyle.Render(fmt.Sprintf("%q", path)))
}

// PrintResultHeader writes the column header for scored output.
func PrintResultHeader() {
	fmt.Println(dimStyle.Render("score\tfilepath"))
}
