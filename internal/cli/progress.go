package cli

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// CLIProgressReporter implements progress reporting with progress bars.
// Scan and parse callbacks arrive from worker goroutines, so bar updates are
// serialized.
type CLIProgressReporter struct {
	quiet bool
	out   io.Writer

	mu       sync.Mutex
	scanBar  *progressbar.ProgressBar
	parseBar *progressbar.ProgressBar
	hits     int
}

var _ indexer.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a new CLI progress reporter writing bars to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
		out:   out,
	}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	log.Printf("Found %d source files", files)
}

func (c *CLIProgressReporter) OnScanStart(totalFiles int) {
	if c.quiet || totalFiles == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanBar = c.newBar(totalFiles, "Checking cache", "files/s")
}

func (c *CLIProgressReporter) OnFileScanned(relPath string, hit bool, symbols int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	}
	if c.scanBar != nil {
		c.scanBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnParseStart(filesToParse int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(c.scanBar)
	if filesToParse == 0 {
		log.Printf("All %d files unchanged, nothing to parse", c.hits)
		return
	}
	c.parseBar = c.newBar(filesToParse, "Parsing files", "files/s")
}

func (c *CLIProgressReporter) OnFileParsed(relPath string, result extraction.Result) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parseBar != nil {
		c.parseBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnWriting() {
	if c.quiet {
		return
	}
	c.mu.Lock()
	c.finish(c.parseBar)
	c.mu.Unlock()
	log.Println("Writing symbol store...")
}

func (c *CLIProgressReporter) OnComplete(stats *indexer.RunStats) {
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "✓ Indexing complete")
	fmt.Fprintf(c.out, "  Files:    %s (%s cached, %s parsed, %s skipped)\n",
		formatNumber(stats.Files), formatNumber(stats.CacheHits),
		formatNumber(stats.Parsed), formatNumber(stats.Skipped))
	fmt.Fprintf(c.out, "  Symbols:  %s\n", formatNumber(stats.Symbols))
	if stats.Pruned > 0 {
		fmt.Fprintf(c.out, "  Pruned:   %s deleted files dropped from cache\n", formatNumber(stats.Pruned))
	}
	fmt.Fprintf(c.out, "  Duration: %s\n", stats.Duration.Round(time.Millisecond))
}

func (c *CLIProgressReporter) newBar(total int, description, its string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(its),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) finish(bar *progressbar.ProgressBar) {
	if bar != nil && !bar.IsFinished() {
		bar.Finish()
	}
}
