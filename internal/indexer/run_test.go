package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/cache"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// Test Plan for Run:
// - A first run parses every file, fills the store, persists the cache and renders the map
// - A second run reuses every cache entry
// - Changed content is re-parsed even when the mtime is unchanged
// - Deleted files are pruned from the cache and the store
// - Force ignores the cache
// - Unparseable files are skipped without failing the run and still counted
// - A held index lock rejects the run without touching metadata
// - A failure after the store is opened is recorded as status=failed

const (
	userSource = `class User:
    """A user."""

    def save(self):
        pass
`
	helperSource = `def helper(x):
    """Help."""
    return x
`
)

func runOnce(t *testing.T, layoutRoot string, opts Options) *RunStats {
	t.Helper()
	stats, err := Run(context.Background(), opts)
	require.NoError(t, err, "run in %s", layoutRoot)
	return stats
}

func TestRun_FullThenCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	layout, cfg := newProject(t, map[string]string{
		"models.py":     userSource,
		"util/help.py":  helperSource,
		"notes/todo.md": "ignored",
	})
	opts := Options{Layout: layout, Config: cfg, RunID: "run-1"}

	stats := runOnce(t, layout.Root, opts)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Parsed)
	assert.Zero(t, stats.CacheHits)
	assert.Equal(t, 3, stats.Symbols)

	store, err := storage.Open(layout.Store)
	require.NoError(t, err)
	defer store.Close()

	meta, err := store.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, meta.Status)
	assert.Equal(t, 3, meta.SymbolCount)
	assert.Equal(t, 2, meta.FileCount)
	assert.Equal(t, "run-1", meta.RunID)

	symbols, err := store.FileSymbols(ctx, "models.py")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "User", symbols[0].Name)
	assert.Equal(t, "save", symbols[1].Name)
	assert.Equal(t, "User", symbols[1].Parent)

	header, err := cache.ReadHeader(layout.Cache)
	require.NoError(t, err)
	assert.Equal(t, 2, header.FileCount)

	repoMap, err := os.ReadFile(layout.RepoMap)
	require.NoError(t, err)
	assert.Contains(t, string(repoMap), "### models.py")

	progress, err := ReadProgress(layout.Progress)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, progress.Phase)
	assert.Equal(t, "run-1", progress.RunID)

	opts.RunID = "run-2"
	stats = runOnce(t, layout.Root, opts)
	assert.Equal(t, 2, stats.CacheHits)
	assert.Zero(t, stats.Parsed)
	assert.Equal(t, 3, stats.Symbols)
}

func TestRun_ContentChangeWithSameMTime(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{"a.py": "def one():\n    pass\n"})
	path := filepath.Join(layout.Root, "a.py")
	fixed := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, path, fixed)

	runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r1"})

	require.NoError(t, os.WriteFile(path, []byte("def two():\n    pass\n"), 0o644))
	touch(t, path, fixed)

	stats := runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r2"})
	assert.Equal(t, 1, stats.Parsed)

	store, err := storage.Open(layout.Store)
	require.NoError(t, err)
	defer store.Close()
	symbols, err := store.FileSymbols(context.Background(), "a.py")
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "two", symbols[0].Name)
}

func TestRun_PrunesDeletedFiles(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{
		"keep.py": "def keep():\n    pass\n",
		"gone.py": "def gone():\n    pass\n",
	})
	runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r1"})

	require.NoError(t, os.Remove(filepath.Join(layout.Root, "gone.py")))
	stats := runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r2"})
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Pruned)

	store, err := storage.Open(layout.Store)
	require.NoError(t, err)
	defer store.Close()
	files, err := store.ListFiles(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.py"}, files)
}

func TestRun_Force(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r1"})

	stats := runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r2", Force: true})
	assert.Equal(t, 1, stats.Parsed)
	assert.Zero(t, stats.CacheHits)
}

func TestRun_SkipsUnparseableFiles(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{
		"ok.py":  "def ok():\n    pass\n",
		"bad.py": "def \xff\xfe():\n",
	})

	stats := runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r1", Verbose: true})
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Symbols)

	// The skipped file is cached too, so the next run does not re-parse it.
	stats = runOnce(t, layout.Root, Options{Layout: layout, Config: cfg, RunID: "r2"})
	assert.Equal(t, 2, stats.CacheHits)
}

func TestRun_LockHeld(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	lock, err := AcquireLock(context.Background(), layout.Lock)
	require.NoError(t, err)
	defer lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = Run(ctx, Options{Layout: layout, Config: cfg, RunID: "r1"})
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, storage.Exists(layout.Store))
}

func TestRun_RecordsFailure(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	// A directory where the cache snapshot goes makes Persist fail.
	require.NoError(t, os.MkdirAll(filepath.Join(layout.Cache, "blocker"), 0o755))

	_, err := Run(context.Background(), Options{Layout: layout, Config: cfg, RunID: "r1"})
	require.Error(t, err)

	meta, err := storage.ReadMetadata(context.Background(), layout.Store)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, meta.Status)
	assert.Equal(t, "r1", meta.RunID)
	assert.NotEmpty(t, meta.ErrorMessage)
}
