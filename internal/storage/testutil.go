package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestStore creates a file-backed store in t.TempDir().
//
// A file is used rather than :memory: so the WAL settings and cross
// connection visibility match production. Cleanup is registered with
// t.Cleanup().
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    store := storage.NewTestStore(t)
//	    // ... test code ...
//	}
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "symbols.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}
