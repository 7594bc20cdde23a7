package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/query"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// Test Plan for the CLI:
// - loadProject defaults, explicit config files, missing and non-directory roots
// - runForegroundIndex builds the store and a second run is served from cache
// - cleanState removes generated files, keeps config.yml, handles a missing
//   state directory, and refuses while the index lock is held
// - writeStatus renders text and JSON for missing, indexed and in-flight states
// - writeSymbols prints one row per symbol
// - formatting helpers (duration, time since, number, progress)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadProject(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()

		layout, cfg, err := loadProject(root, "")
		require.NoError(t, err)
		assert.Equal(t, root, layout.Root)
		assert.Equal(t, filepath.Join(root, config.DefaultDir, "symbols.db"), layout.Store)
		assert.Equal(t, config.Default().Query.SearchLimit, cfg.Query.SearchLimit)
	})

	t.Run("explicit config file", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		cfgPath := filepath.Join(t.TempDir(), "repomap.yml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("query:\n  search_limit: 7\n"), 0o644))

		_, cfg, err := loadProject(root, cfgPath)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Query.SearchLimit)
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()
		_, _, err := loadProject(t.TempDir(), filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()
		_, _, err := loadProject(filepath.Join(t.TempDir(), "gone"), "")
		assert.Error(t, err)
	})

	t.Run("root is a file", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeProjectFile(t, root, "a.py", "x = 1\n")
		_, _, err := loadProject(filepath.Join(root, "a.py"), "")
		assert.ErrorContains(t, err, "not a directory")
	})
}

func TestRunForegroundIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeProjectFile(t, root, "pkg/users.py", "def get_user(id):\n    \"\"\"Fetch a user.\"\"\"\n    return id\n\n\nclass Repo:\n    def save(self, user):\n        pass\n")
	layout, cfg, err := loadProject(root, "")
	require.NoError(t, err)

	var out bytes.Buffer
	stats, err := runForegroundIndex(context.Background(), &out, layout, cfg, false, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Parsed)
	assert.Equal(t, 3, stats.Symbols)
	assert.Empty(t, out.String(), "quiet run prints nothing")

	store, err := storage.Open(layout.Store)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	meta, err := store.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, meta.Status)
	assert.Equal(t, 3, meta.SymbolCount)

	out.Reset()
	stats, err = runForegroundIndex(context.Background(), &out, layout, cfg, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, 0, stats.Parsed)
	assert.Contains(t, out.String(), "Indexing complete")
}

func TestCleanState(t *testing.T) {
	t.Parallel()

	t.Run("removes generated files and keeps config", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		layout := config.NewLayout(root, "")
		for _, path := range []string{layout.Store, layout.Cache, layout.RepoMap, layout.Config} {
			writeProjectFile(t, root, mustRel(t, root, path), "data")
		}

		var out bytes.Buffer
		require.NoError(t, cleanState(&out, layout, false))

		for _, path := range []string{layout.Store, layout.Cache, layout.RepoMap} {
			assert.NoFileExists(t, path)
		}
		assert.FileExists(t, layout.Config)
		assert.Contains(t, out.String(), "Removed 3 files")
	})

	t.Run("no state directory", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, cleanState(&out, config.NewLayout(t.TempDir(), ""), false))
		assert.Contains(t, out.String(), "No index state found")
	})

	t.Run("quiet", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		layout := config.NewLayout(root, "")
		writeProjectFile(t, root, mustRel(t, root, layout.Store), "data")

		var out bytes.Buffer
		require.NoError(t, cleanState(&out, layout, true))
		assert.Empty(t, out.String())
		assert.NoFileExists(t, layout.Store)
	})

	t.Run("refuses while locked", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		layout := config.NewLayout(root, "")
		writeProjectFile(t, root, mustRel(t, root, layout.Store), "data")

		lock, err := indexer.AcquireLock(context.Background(), layout.Lock)
		require.NoError(t, err)
		defer lock.Release()

		err = cleanState(&bytes.Buffer{}, layout, true)
		assert.ErrorContains(t, err, "in progress")
		assert.FileExists(t, layout.Store)
	})
}

func mustRel(t *testing.T, root, path string) string {
	t.Helper()
	rel, err := filepath.Rel(root, path)
	require.NoError(t, err)
	return rel
}

func TestWriteStatus(t *testing.T) {
	t.Parallel()

	last := time.Now().Add(-90 * time.Minute)

	t.Run("no store", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, query.Status{Root: "/p", Stale: true, StaleReason: "no index"}, false))
		assert.Contains(t, out.String(), "not created")
		assert.Contains(t, out.String(), "Stale:        yes (no index)")
	})

	t.Run("indexed", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, query.Status{
			Root:        "/p",
			StoreExists: true,
			State:       storage.StatusCompleted,
			LastIndexed: &last,
			SymbolCount: 12345,
			FileCount:   42,
		}, false))
		text := out.String()
		assert.Contains(t, text, "Status:       completed")
		assert.Contains(t, text, "Last indexed: 1h 30m ago")
		assert.Contains(t, text, "Symbols:      12,345")
		assert.Contains(t, text, "Stale:        no")
	})

	t.Run("indexing", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, query.Status{
			Root:        "/p",
			StoreExists: true,
			State:       storage.StatusIndexing,
			Indexing: &query.IndexingStatus{
				RunID:   "run-1",
				PID:     4242,
				Elapsed: "12s",
				Percent: 46,
				ETA:     "14s",
				Progress: &indexer.Progress{
					Phase:        indexer.PhaseParsing,
					FilesToParse: 10,
					FilesParsed:  4,
					SymbolsFound: 50,
				},
			},
		}, false))
		text := out.String()
		assert.Contains(t, text, "Run:          run-1 (12s elapsed)")
		assert.Contains(t, text, "PID:          4242")
		assert.Contains(t, text, "46%, parsing (4/10 files, 50 symbols)")
		assert.Contains(t, text, "Remaining:    ~14s")
	})

	t.Run("crashed with error", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, query.Status{
			Root:        "/p",
			StoreExists: true,
			State:       storage.StatusIndexing,
			Crashed:     true,
			LastError:   "indexer killed by SIGKILL",
		}, false))
		assert.Contains(t, out.String(), "indexing (crashed, will be reconciled)")
		assert.Contains(t, out.String(), "Last error:   indexer killed by SIGKILL")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, query.Status{Root: "/p", StoreExists: true, State: storage.StatusCompleted, SymbolCount: 3}, true))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "/p", decoded["project_root"])
		assert.Equal(t, "completed", decoded["status"])
		assert.Equal(t, float64(3), decoded["symbol_count"])
	})
}

func TestWriteSymbols(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, writeSymbols(&out, []extraction.Symbol{
		{Name: "get_user", Kind: extraction.KindFunction, FilePath: "pkg/users.py", Line: 1, EndLine: 3, Signature: "get_user(id)"},
		{Name: "save", Kind: extraction.KindMethod, Parent: "Repo", FilePath: "pkg/users.py", Line: 7},
	}))
	text := out.String()
	assert.Contains(t, text, "get_user")
	assert.Contains(t, text, "Repo.save")
	assert.Contains(t, text, "pkg/users.py:1")
	assert.Contains(t, text, "get_user(id)")

	out.Reset()
	require.NoError(t, writeSymbols(&out, nil))
	assert.Equal(t, "No symbols found\n", out.String())
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		seconds  int64
		expected string
	}{
		{"5 seconds", 5, "5s"},
		{"90 seconds", 90, "1m"},
		{"5 minutes", 300, "5m"},
		{"90 minutes", 5400, "1h 30m"},
		{"2 hours", 7200, "2h"},
		{"1 day", 86400, "1d"},
		{"1 day 3 hours", 97200, "1d 3h"},
		{"3 days", 259200, "3d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := formatDuration(time.Duration(tt.seconds) * time.Second)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatTimeSince(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	assert.Equal(t, "never", formatTimeSince(nil, now))
	assert.Equal(t, "never", formatTimeSince(&time.Time{}, now))
	assert.Equal(t, "5s ago", formatTimeSince(ago(5*time.Second), now))
	assert.Equal(t, "5m ago", formatTimeSince(ago(5*time.Minute), now))
	assert.Equal(t, "2h ago", formatTimeSince(ago(2*time.Hour), now))
	assert.Equal(t, "1d ago", formatTimeSince(ago(24*time.Hour), now))
}

func TestFormatProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		progress indexer.Progress
		expected string
	}{
		{indexer.Progress{Phase: indexer.PhaseDiscovering}, "discovering files"},
		{indexer.Progress{Phase: indexer.PhaseScanning, FilesScanned: 3, FilesTotal: 9}, "checking cache (3/9 files)"},
		{indexer.Progress{Phase: indexer.PhaseParsing, FilesParsed: 4, FilesToParse: 10, SymbolsFound: 1500}, "parsing (4/10 files, 1,500 symbols)"},
		{indexer.Progress{Phase: indexer.PhaseWriting}, "writing symbol store"},
		{indexer.Progress{Phase: indexer.PhaseDone}, "complete"},
		{indexer.Progress{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, formatProgress(tt.progress))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		number   int
		expected string
	}{
		{"single digit", 5, "5"},
		{"double digit", 42, "42"},
		{"triple digit", 999, "999"},
		{"thousands", 1234, "1,234"},
		{"ten thousands", 12345, "12,345"},
		{"millions", 1234567, "1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := formatNumber(tt.number)
			assert.Equal(t, tt.expected, result)
		})
	}
}
