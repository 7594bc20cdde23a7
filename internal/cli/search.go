package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/query"
)

var (
	searchKind  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search symbols by name",
	Long: `Search the symbol store by glob pattern without starting the server.

Examples:
  # Functions whose name starts with get_
  repomap search 'get_*' --kind function

  # Every method named Close
  repomap search Close --kind method --limit 100
`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchKind, "kind", "k", "", "Filter by kind: class, function or method")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (default from query.search_limit)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	kind, err := extraction.ParseKind(searchKind)
	if err != nil {
		return err
	}

	layout, cfg, err := loadProject(rootDir, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	svc, err := newOneShotService(layout, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	symbols, err := svc.Query().Search(context.Background(), args[0], kind, searchLimit)
	if errors.Is(err, query.ErrNotIndexed) {
		return fmt.Errorf("%w; a background run was started, or run 'repomap index'", err)
	}
	if err != nil {
		return err
	}
	return writeSymbols(cmd.OutOrStdout(), symbols)
}

// writeSymbols prints one symbol per line: kind, qualified name, location,
// signature.
func writeSymbols(out io.Writer, symbols []extraction.Symbol) error {
	if len(symbols) == 0 {
		fmt.Fprintln(out, "No symbols found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, sym := range symbols {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sym.Kind, sym.FullName(), sym.Location(), sym.Signature)
	}
	return w.Flush()
}
