package storage

// Test Plan for Store:
// - A new store reports status idle with no snapshot
// - BeginRun sets status indexing, start time and run id
// - ReplaceAll swaps the symbol table and marks the run completed with counts
// - ReplaceAll leaves the previous snapshot intact when the transaction fails
// - FailRun only applies while indexing the same run, and never overwrites completed
// - SearchByName applies true glob semantics (the LIKE prefilter is case-insensitive, the glob is not)
// - SearchByName honours kind filters, limits and character classes
// - FileSymbols returns symbols in line order with optional fields round-tripped
// - FindSymbols distinguishes parents, kinds and files
// - ListFiles returns distinct sorted paths, optionally glob-filtered
// - Store reopens with the same contents

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

func sym(name string, kind extraction.Kind, file string, line int) extraction.Symbol {
	return extraction.Symbol{Name: name, Kind: kind, FilePath: file, Line: line, Language: "python"}
}

func symbolNames(symbols []extraction.Symbol) []string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return names
}

func TestStore_NewIsIdle(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	meta, err := store.Metadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusIdle, meta.Status)
	assert.False(t, meta.HasSnapshot())
	assert.Equal(t, extraction.SchemaVersion, meta.SchemaVersion)
}

func TestStore_RunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTestStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.BeginRun(ctx, "run-1", start))

	meta, err := store.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexing, meta.Status)
	assert.Equal(t, "run-1", meta.RunID)
	assert.True(t, meta.IndexStartTime.Equal(start))
	assert.Equal(t, 30*time.Second, meta.Elapsed(start.Add(30*time.Second)))

	finished := start.Add(time.Minute)
	err = store.ReplaceAll(ctx, []extraction.Symbol{
		sym("User", extraction.KindClass, "models.py", 1),
		sym("save", extraction.KindMethod, "models.py", 5),
	}, RunStats{RunID: "run-1", FileCount: 1, Finished: finished})
	require.NoError(t, err)

	meta, err = store.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, meta.Status)
	assert.Equal(t, 2, meta.SymbolCount)
	assert.Equal(t, 1, meta.FileCount)
	assert.True(t, meta.LastIndexed.Equal(finished))
	assert.Empty(t, meta.ErrorMessage)
	assert.Zero(t, meta.Elapsed(finished))
}

func TestStore_ReplaceAllIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTestStore(t)

	require.NoError(t, store.ReplaceAll(ctx, []extraction.Symbol{
		sym("old", extraction.KindFunction, "a.py", 1),
	}, RunStats{RunID: "r1", FileCount: 1}))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := store.ReplaceAll(canceled, []extraction.Symbol{
		sym("new", extraction.KindFunction, "b.py", 1),
	}, RunStats{RunID: "r2", FileCount: 1})
	require.Error(t, err)

	all, err := store.AllSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, symbolNames(all))
}

func TestStore_FailRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies to the running run", func(t *testing.T) {
		t.Parallel()
		store := NewTestStore(t)
		require.NoError(t, store.BeginRun(ctx, "run-1", time.Now()))

		applied, err := store.FailRun(ctx, "run-1", "killed by signal")
		require.NoError(t, err)
		assert.True(t, applied)

		meta, err := store.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, meta.Status)
		assert.Equal(t, "killed by signal", meta.ErrorMessage)
	})

	t.Run("ignores a different run", func(t *testing.T) {
		t.Parallel()
		store := NewTestStore(t)
		require.NoError(t, store.BeginRun(ctx, "run-2", time.Now()))

		applied, err := store.FailRun(ctx, "run-1", "stale")
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("never overwrites completed", func(t *testing.T) {
		t.Parallel()
		store := NewTestStore(t)
		require.NoError(t, store.BeginRun(ctx, "run-1", time.Now()))
		require.NoError(t, store.ReplaceAll(ctx, nil, RunStats{RunID: "run-1"}))

		applied, err := store.FailRun(ctx, "", "late")
		require.NoError(t, err)
		assert.False(t, applied)

		meta, err := store.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, meta.Status)
	})

	t.Run("unconditional", func(t *testing.T) {
		t.Parallel()
		store := NewTestStore(t)
		require.NoError(t, store.FailRunUnconditionally(ctx, "run-9", "cannot write cache"))

		meta, err := store.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, meta.Status)
		assert.Equal(t, "run-9", meta.RunID)
	})
}

func seedSearch(t *testing.T) *Store {
	t.Helper()
	store := NewTestStore(t)
	err := store.ReplaceAll(context.Background(), []extraction.Symbol{
		sym("get_user", extraction.KindFunction, "users.py", 3),
		sym("set_user", extraction.KindFunction, "users.py", 9),
		sym("get_order", extraction.KindFunction, "orders.py", 1),
		sym("Get_Config", extraction.KindFunction, "config.py", 1),
		sym("getter", extraction.KindMethod, "orders.py", 20),
		sym("get%pct", extraction.KindFunction, "odd.py", 1),
		sym("getXpct", extraction.KindFunction, "odd.py", 2),
	}, RunStats{RunID: "seed", FileCount: 4})
	require.NoError(t, err)
	return store
}

func TestStore_SearchByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seedSearch(t)

	tests := []struct {
		name    string
		pattern string
		kind    extraction.Kind
		limit   int
		want    []string
	}{
		{"prefix glob", "get_*", "", 0, []string{"get_order", "get_user"}},
		{"case sensitive", "Get_*", "", 0, []string{"Get_Config"}},
		{"single char", "?et_user", "", 0, []string{"get_user", "set_user"}},
		{"kind filter", "get*", extraction.KindMethod, 0, []string{"getter"}},
		{"limit", "get_*", "", 1, []string{"get_order"}},
		{"character class", "[gs]et_user", "", 0, []string{"get_user", "set_user"}},
		{"literal percent", "get%*", "", 0, []string{"get%pct"}},
		{"exact", "getter", "", 0, []string{"getter"}},
		{"no match", "nothing*", "", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := store.SearchByName(ctx, tt.pattern, tt.kind, tt.limit)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, symbolNames(got))
		})
	}
}

func TestStore_SearchByName_InvalidPattern(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	_, err := store.SearchByName(context.Background(), "[unclosed", "", 0)
	assert.Error(t, err)
}

func TestStore_FileSymbols(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTestStore(t)
	err := store.ReplaceAll(ctx, []extraction.Symbol{
		{Name: "save", Kind: extraction.KindMethod, FilePath: "m.py", Line: 4, EndLine: 8, Parent: "User", Signature: "save(self)", DocSummary: "Persist.", Language: "python"},
		{Name: "User", Kind: extraction.KindClass, FilePath: "m.py", Line: 1, Language: "python"},
		{Name: "other", Kind: extraction.KindFunction, FilePath: "n.py", Line: 1, Language: "python"},
	}, RunStats{RunID: "r", FileCount: 2})
	require.NoError(t, err)

	got, err := store.FileSymbols(ctx, "m.py")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "User", got[0].Name)
	assert.Empty(t, got[0].Parent)
	assert.Zero(t, got[0].EndLine)
	assert.False(t, got[0].HasEndLine())

	assert.Equal(t, extraction.Symbol{
		Name: "save", Kind: extraction.KindMethod, FilePath: "m.py", Line: 4, EndLine: 8,
		Parent: "User", Signature: "save(self)", DocSummary: "Persist.", Language: "python",
	}, got[1])

	missing, err := store.FileSymbols(ctx, "nope.py")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStore_FindSymbols(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTestStore(t)
	err := store.ReplaceAll(ctx, []extraction.Symbol{
		{Name: "Foo", Kind: extraction.KindClass, FilePath: "a.py", Line: 1},
		{Name: "bar", Kind: extraction.KindMethod, FilePath: "a.py", Line: 2, Parent: "Foo"},
		{Name: "Foo", Kind: extraction.KindClass, FilePath: "b.py", Line: 1},
		{Name: "bar", Kind: extraction.KindMethod, FilePath: "b.py", Line: 2, Parent: "Foo"},
		{Name: "bar", Kind: extraction.KindFunction, FilePath: "c.py", Line: 1},
	}, RunStats{RunID: "r", FileCount: 3})
	require.NoError(t, err)

	all, err := store.FindSymbols(ctx, SymbolFilter{Name: "bar"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	methods, err := store.FindSymbols(ctx, SymbolFilter{Name: "bar", Parent: "Foo", HasParent: true})
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "a.py", methods[0].FilePath)
	assert.Equal(t, "b.py", methods[1].FilePath)

	topLevel, err := store.FindSymbols(ctx, SymbolFilter{Name: "bar", HasParent: true})
	require.NoError(t, err)
	require.Len(t, topLevel, 1)
	assert.Equal(t, "c.py", topLevel[0].FilePath)

	byFile, err := store.FindSymbols(ctx, SymbolFilter{Name: "bar", Parent: "Foo", HasParent: true, FilePath: "b.py"})
	require.NoError(t, err)
	assert.Len(t, byFile, 1)

	byKind, err := store.FindSymbols(ctx, SymbolFilter{Name: "Foo", Kind: extraction.KindMethod})
	require.NoError(t, err)
	assert.Empty(t, byKind)
}

func TestStore_ListFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTestStore(t)
	err := store.ReplaceAll(ctx, []extraction.Symbol{
		sym("a", extraction.KindFunction, "pkg/a.py", 1),
		sym("b", extraction.KindFunction, "pkg/a.py", 2),
		sym("c", extraction.KindFunction, "pkg/sub/c.py", 1),
		sym("d", extraction.KindFunction, "main.rs", 1),
	}, RunStats{RunID: "r", FileCount: 3})
	require.NoError(t, err)

	files, err := store.ListFiles(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.rs", "pkg/a.py", "pkg/sub/c.py"}, files)

	files, err = store.ListFiles(ctx, "*.py", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/a.py", "pkg/sub/c.py"}, files)

	files, err = store.ListFiles(ctx, "pkg/*", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/a.py"}, files)

	n, err := store.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "symbols.db")
	assert.False(t, Exists(path))

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, []extraction.Symbol{
		sym("kept", extraction.KindFunction, "k.py", 1),
	}, RunStats{RunID: "r", FileCount: 1}))
	require.NoError(t, store.Close())
	assert.True(t, Exists(path))

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.AllSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, symbolNames(all))
	assert.Equal(t, path, reopened.Path())
}

func TestReadMetadata(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTestStore(t)
	require.NoError(t, store.ReplaceAll(ctx, nil, RunStats{RunID: "r", FileCount: 4}))

	meta, err := ReadMetadata(ctx, store.Path())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, meta.Status)
	assert.Equal(t, 4, meta.FileCount)

	_, err = ReadMetadata(ctx, filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err, "read-only open must not create the file")
}

func TestOpener(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "symbols.db")
	opener := NewOpener(path)
	defer opener.Close()

	_, err := opener.Existing()
	assert.ErrorIs(t, err, ErrNoStore)
	assert.False(t, opener.Exists())

	first, err := opener.Open()
	require.NoError(t, err)
	assert.True(t, opener.Exists())

	second, err := opener.Existing()
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, opener.Close())
	require.NoError(t, opener.Close())
}
