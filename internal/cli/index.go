package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/daemon"
	"github.com/mvp-joe/repo-map/internal/indexer"
)

var (
	forceFlag      bool
	quietFlag      bool
	supervisedFlag bool
	runIDFlag      string
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the project's symbols",
	Long: `Index discovers source files, extracts their classes, functions and methods,
and replaces the symbol store in .repomap/symbols.db in one transaction.

Files whose modification time and content hash match the symbol cache are
not parsed again. A repo map with documentation coverage and similar
symbol clusters is written to .repomap/repo-map.md.

Examples:
  # Index the current directory
  repomap index

  # Ignore the cache and parse every file
  repomap index --force

  # Index a specific directory without progress bars
  repomap index --root /path/to/project --quiet
`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Ignore the symbol cache and parse every file")
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")

	// Child mode, used by the service when it spawns an indexing run.
	indexCmd.Flags().BoolVar(&supervisedFlag, "supervised", false, "Run as a supervised indexing child")
	indexCmd.Flags().StringVar(&runIDFlag, "run-id", "", "Run id assigned by the supervisor")
	_ = indexCmd.Flags().MarkHidden("supervised")
	_ = indexCmd.Flags().MarkHidden("run-id")
}

func runIndex(cmd *cobra.Command, args []string) error {
	layout, cfg, err := loadProject(rootDir, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if supervisedFlag {
		return runSupervisedIndex(layout, cfg, runIDFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runForegroundIndex(ctx, cmd.OutOrStdout(), layout, cfg, forceFlag, quietFlag)
	return err
}

// runForegroundIndex runs extraction in this process with a progress bar.
func runForegroundIndex(ctx context.Context, out io.Writer, layout config.Layout, cfg *config.Config, force, quiet bool) (*indexer.RunStats, error) {
	if quiet {
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
	}

	stats, err := indexer.Run(ctx, indexer.Options{
		Layout:   layout,
		Config:   cfg,
		RunID:    uuid.NewString(),
		Force:    force,
		Verbose:  verbose,
		Reporter: NewCLIProgressReporter(out, quiet),
	})
	if errors.Is(err, indexer.ErrLocked) {
		return nil, fmt.Errorf("another indexing run holds %s; try again when it finishes", layout.Lock)
	}
	if err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}
	return stats, nil
}

// runSupervisedIndex is the extraction child. It lowers its own resource
// limits before doing any work; exceeding them kills the process and the
// watchdog records the failure.
func runSupervisedIndex(layout config.Layout, cfg *config.Config, runID string) error {
	project := layout.ProjectName()
	if runID == "" {
		return errors.New("--run-id is required with --supervised")
	}

	err := daemon.ApplyLimits(cfg.Supervisor.MemoryLimitBytes, cfg.Supervisor.CPULimit)
	switch {
	case errors.Is(err, daemon.ErrLimitsUnsupported):
		log.Printf("[%s] Warning: %v", project, err)
	case err != nil:
		return err
	}

	log.Printf("[%s] Indexing run %s started (pid %d)", project, runID, os.Getpid())
	if _, err := indexer.Run(context.Background(), indexer.Options{
		Layout:   layout,
		Config:   cfg,
		RunID:    runID,
		Verbose:  verbose,
		Reporter: &indexer.NoOpProgressReporter{},
	}); err != nil {
		return fmt.Errorf("indexing run %s failed: %w", runID, err)
	}
	return nil
}
