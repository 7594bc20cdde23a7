package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/config"
)

// writeTree creates files under root from a path → content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// touch sets a file's mtime.
func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

// newProject returns a layout and config for a fresh project directory.
func newProject(t *testing.T, files map[string]string) (config.Layout, *config.Config) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	cfg := config.Default()
	cfg.Index.Workers = 2
	return cfg.Layout(root), cfg
}
