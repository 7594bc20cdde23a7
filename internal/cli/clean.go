package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/indexer"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove index state to force a full reindex",
	Long: `Clean removes the symbol store, symbol cache, progress file, log and repo map
from .repomap/. The next run parses every file again.

The configuration file (.repomap/config.yml) is preserved. Clean refuses to
run while an indexing run holds the index lock.

Examples:
  repomap clean
  repomap clean --quiet
`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

func runClean(cmd *cobra.Command, args []string) error {
	layout, _, err := loadProject(rootDir, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return cleanState(cmd.OutOrStdout(), layout, cleanQuietFlag)
}

// cleanState deletes every generated file in the state directory.
func cleanState(out io.Writer, layout config.Layout, quiet bool) error {
	if _, err := os.Stat(layout.Dir); os.IsNotExist(err) {
		if !quiet {
			fmt.Fprintln(out, "No index state found for this project")
		}
		return nil
	}

	held, err := indexer.LockHeld(layout.Lock)
	if err != nil {
		return fmt.Errorf("failed to check index lock: %w", err)
	}
	if held {
		return fmt.Errorf("an indexing run is in progress (%s is locked)", layout.Lock)
	}

	var sizeMB float64
	removed := 0
	for _, path := range stateFiles(layout) {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		sizeMB += float64(info.Size()) / (1024 * 1024)
		removed++
	}

	if !quiet {
		if removed == 0 {
			fmt.Fprintln(out, "Nothing to clean")
			return nil
		}
		fmt.Fprintf(out, "✓ Removed %d files (~%.1f MB)\n", removed, sizeMB)
		fmt.Fprintln(out, "Next 'repomap index' will perform a full reindex")
	}
	return nil
}

// stateFiles lists the generated files, including SQLite's WAL companions.
func stateFiles(layout config.Layout) []string {
	return []string{
		layout.Store,
		layout.Store + "-wal",
		layout.Store + "-shm",
		layout.Cache,
		layout.Progress,
		layout.Lock,
		layout.Log,
		layout.RepoMap,
	}
}
