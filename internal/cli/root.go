package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/repo-map/internal/config"
)

var (
	rootDir string
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "repomap",
	Short: "Repo-map - a code symbol index for coding assistants",
	Long: `Repo-map indexes the classes, functions and methods of a source tree into a
local SQLite store and answers symbol queries over MCP.

Indexing runs in a separate, resource-limited process and is incremental:
files whose modification time and content hash are unchanged reuse their
cached symbols. Per-project state lives in .repomap/ under the project root.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root (default is the current directory)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.repomap/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadProject resolves the project root and loads its configuration.
func loadProject(root, configFile string) (config.Layout, *config.Config, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Layout{}, nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return config.Layout{}, nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return config.Layout{}, nil, fmt.Errorf("project root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return config.Layout{}, nil, fmt.Errorf("project root %s is not a directory", abs)
	}

	loader := config.NewLoader(abs)
	if configFile != "" {
		loader = config.NewLoaderWithFile(abs, configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return config.Layout{}, nil, err
	}
	return cfg.Layout(abs), cfg, nil
}
