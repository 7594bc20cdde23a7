package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/repo-map/internal/mcp"
	"github.com/mvp-joe/repo-map/internal/service"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"mcp"},
	Short:   "Start the MCP server for symbol queries",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
search and read the symbols of this project.

The server:
- Answers search_symbols, get_file_symbols, get_symbol_content, list_files,
  reindex and status over stdio
- Reindexes in a background process whenever the index goes stale
- Kills indexing runs that exceed the watchdog deadline

Logs go to stderr; stdout carries the MCP protocol.

Example:
  repomap serve --root /path/to/project`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log.SetOutput(os.Stderr)

	layout, cfg, err := loadProject(rootDir, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	svc, err := service.New(layout, cfg)
	if err != nil {
		return err
	}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		svc.Supervisor().SetChildArgs("--config", abs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	fmt.Fprintf(os.Stderr, "repomap MCP server %s\n", Version)
	fmt.Fprintf(os.Stderr, "Project: %s\n", layout.Root)
	fmt.Fprintf(os.Stderr, "Store:   %s\n\n", layout.Store)

	if err := mcp.NewMCPServer(svc.Query(), Version).Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
