package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/query"
	"github.com/mvp-joe/repo-map/internal/service"
)

var (
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Long: `Show the state of the project index without starting the server.

Displays:
- Whether the symbol store exists and its status
- The indexing run in flight, with progress, or a crashed run
- The last error, last indexed time, symbol and file counts
- Whether the index is stale and why`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	layout, cfg, err := loadProject(rootDir, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	svc, err := newOneShotService(layout, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	status := svc.Query().Status(context.Background())
	return writeStatus(cmd.OutOrStdout(), status, statusJSON)
}

// newOneShotService wires the query stack for a single CLI call. Nothing is
// started and no watcher is created.
func newOneShotService(layout config.Layout, cfg *config.Config) (*service.Service, error) {
	oneShot := *cfg
	oneShot.Watch.Enabled = false
	return service.New(layout, &oneShot)
}

func writeStatus(out io.Writer, status query.Status, asJSON bool) error {
	if asJSON {
		jsonBytes, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(out, "Project: %s\n", status.Root)
	if !status.StoreExists {
		fmt.Fprintln(out, "  Index:        not created (run 'repomap index')")
		writeStaleness(out, status)
		return nil
	}

	state := string(status.State)
	if status.Crashed {
		state += " (crashed, will be reconciled)"
	}
	fmt.Fprintf(out, "  Status:       %s\n", state)
	if ind := status.Indexing; ind != nil {
		fmt.Fprintf(out, "  Run:          %s (%s elapsed)\n", ind.RunID, ind.Elapsed)
		if ind.PID > 0 {
			fmt.Fprintf(out, "  PID:          %d\n", ind.PID)
		}
		if ind.Progress != nil {
			fmt.Fprintf(out, "  Progress:     %.0f%%, %s\n", ind.Percent, formatProgress(*ind.Progress))
		}
		if ind.ETA != "" {
			fmt.Fprintf(out, "  Remaining:    ~%s\n", ind.ETA)
		}
	}
	if status.LastError != "" {
		fmt.Fprintf(out, "  Last error:   %s\n", status.LastError)
	}
	fmt.Fprintf(out, "  Last indexed: %s\n", formatTimeSince(status.LastIndexed, time.Now()))
	fmt.Fprintf(out, "  Files:        %s\n", formatNumber(status.FileCount))
	fmt.Fprintf(out, "  Symbols:      %s\n", formatNumber(status.SymbolCount))
	if status.StoreError != "" {
		fmt.Fprintf(out, "  Store error:  %s\n", status.StoreError)
	}
	writeStaleness(out, status)
	return nil
}

func writeStaleness(out io.Writer, status query.Status) {
	if status.Stale {
		fmt.Fprintf(out, "  Stale:        yes (%s)\n", status.StaleReason)
		return
	}
	fmt.Fprintf(out, "  Stale:        no\n")
}

// formatProgress converts a progress snapshot to a human-readable phrase.
func formatProgress(p indexer.Progress) string {
	switch p.Phase {
	case indexer.PhaseDiscovering:
		return "discovering files"
	case indexer.PhaseScanning:
		return fmt.Sprintf("checking cache (%d/%d files)", p.FilesScanned, p.FilesTotal)
	case indexer.PhaseParsing:
		return fmt.Sprintf("parsing (%d/%d files, %s symbols)", p.FilesParsed, p.FilesToParse, formatNumber(p.SymbolsFound))
	case indexer.PhaseWriting:
		return "writing symbol store"
	case indexer.PhaseDone:
		return "complete"
	default:
		return "unknown"
	}
}

// formatDuration formats a duration in compact format.
// Examples: "5s", "1m", "1h 30m", "2h", "1d", "1d 3h", "3d"
func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}

	return fmt.Sprintf("%ds", secs)
}

// formatTimeSince formats a timestamp as time ago.
// Examples: "5m ago", "2h 30m ago", "never"
func formatTimeSince(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return formatDuration(now.Sub(*t)) + " ago"
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
