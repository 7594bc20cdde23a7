package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/storage"
)

// Test Plan for Detector:
// - No store → stale "no store"
// - Store but no cache → stale "no cache"
// - Unreadable or outdated cache → "cache corrupt" / "schema mismatch"
// - Fresh index → not stale "up to date"
// - Added or removed file → "file count changed"
// - Modified file newer than the last index → "files modified since last index"
// - The sample window rotates across calls until it reaches the modified file
// - IsStale never creates the store

func indexProject(t *testing.T, files map[string]string) (*Detector, string) {
	t.Helper()
	layout, cfg := newProject(t, files)
	_, err := Run(context.Background(), Options{Layout: layout, Config: cfg, RunID: "seed"})
	require.NoError(t, err)

	d, err := NewDetector(layout, cfg)
	require.NoError(t, err)
	return d, layout.Root
}

func TestDetector_NoStore(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	d, err := NewDetector(layout, cfg)
	require.NoError(t, err)

	stale, reason := d.IsStale(context.Background())
	assert.True(t, stale)
	assert.Equal(t, ReasonNoStore, reason)
	assert.False(t, storage.Exists(layout.Store))
}

func TestDetector_NoCache(t *testing.T) {
	t.Parallel()

	layout, cfg := newProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	store, err := storage.Open(layout.Store)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	d, err := NewDetector(layout, cfg)
	require.NoError(t, err)

	stale, reason := d.IsStale(context.Background())
	assert.True(t, stale)
	assert.Equal(t, ReasonNoCache, reason)
}

func TestDetector_UpToDate(t *testing.T) {
	t.Parallel()

	d, _ := indexProject(t, map[string]string{
		"a.py":     "def a():\n    pass\n",
		"pkg/b.py": "class B:\n    pass\n",
	})

	stale, reason := d.IsStale(context.Background())
	assert.False(t, stale)
	assert.Equal(t, ReasonUpToDate, reason)
}

func TestDetector_CacheProblems(t *testing.T) {
	t.Parallel()

	t.Run("corrupt", func(t *testing.T) {
		t.Parallel()
		d, _ := indexProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
		require.NoError(t, os.WriteFile(d.layout.Cache, []byte("{not json"), 0o644))

		stale, reason := d.IsStale(context.Background())
		assert.True(t, stale)
		assert.Equal(t, ReasonCacheCorrupt, reason)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		t.Parallel()
		d, _ := indexProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
		require.NoError(t, os.WriteFile(d.layout.Cache, []byte(`{"version": 1, "files": {}}`), 0o644))

		stale, reason := d.IsStale(context.Background())
		assert.True(t, stale)
		assert.Equal(t, ReasonSchema, reason)
	})
}

func TestDetector_FileCountChanged(t *testing.T) {
	t.Parallel()

	d, root := indexProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	writeTree(t, root, map[string]string{"new.py": "def n():\n    pass\n"})

	stale, reason := d.IsStale(context.Background())
	assert.True(t, stale)
	assert.Equal(t, ReasonFileCount, reason)
}

func TestDetector_Modified(t *testing.T) {
	t.Parallel()

	d, root := indexProject(t, map[string]string{"a.py": "def a():\n    pass\n"})
	touch(t, filepath.Join(root, "a.py"), time.Now().Add(time.Hour))

	stale, reason := d.IsStale(context.Background())
	assert.True(t, stale)
	assert.Equal(t, ReasonModified, reason)
}

func TestDetector_SampleWindowRotates(t *testing.T) {
	t.Parallel()

	d, root := indexProject(t, map[string]string{
		"a.py": "def a():\n    pass\n",
		"b.py": "def b():\n    pass\n",
		"c.py": "def c():\n    pass\n",
	})
	d.sampleSize = 1
	touch(t, filepath.Join(root, "c.py"), time.Now().Add(time.Hour))

	ctx := context.Background()
	stale, _ := d.IsStale(ctx) // samples a.py
	assert.False(t, stale)
	stale, _ = d.IsStale(ctx) // samples b.py
	assert.False(t, stale)
	stale, reason := d.IsStale(ctx) // samples c.py
	assert.True(t, stale)
	assert.Equal(t, ReasonModified, reason)
}
