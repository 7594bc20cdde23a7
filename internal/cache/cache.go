package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/mvp-joe/repo-map/internal/fsutil"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

var (
	// ErrNotExist is returned by ReadHeader when no snapshot has been written.
	ErrNotExist = errors.New("cache snapshot does not exist")
	// ErrCorrupt is returned when the snapshot cannot be decoded.
	ErrCorrupt = errors.New("cache snapshot is corrupt")
)

// Fingerprint identifies one version of a file's bytes.
type Fingerprint struct {
	MTime int64  `json:"mtime"` // unix nanoseconds
	Size  int64  `json:"size"`
	Hash  string `json:"content_hash"`
}

// Entry is the cached extraction result for one file.
type Entry struct {
	Fingerprint
	Symbols []extraction.Symbol `json:"symbols"`
}

type snapshot struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Files     map[string]*Entry `json:"files"`
}

// Header is the part of a snapshot the staleness detector needs.
type Header struct {
	Version   int
	FileCount int
	UpdatedAt time.Time
}

// Cache maps relative file paths to the symbols extracted from them.
//
// An entry is reused only when both the file's mtime and its content hash
// match; a matching mtime alone is never trusted.
type Cache struct {
	path string

	mu    sync.RWMutex
	files map[string]*Entry
}

// New returns an empty cache that persists to path. Used for forced runs
// that must not reuse anything from a previous snapshot.
func New(path string) *Cache {
	return &Cache{path: path, files: make(map[string]*Entry)}
}

// Load reads the snapshot at path. A missing snapshot, a corrupt one or one
// written with a different schema version yields an empty cache; the caller
// learns which through the returned reason, which is empty on a clean load.
func Load(path string) (*Cache, string) {
	c := New(path)

	snap, err := readSnapshot(path)
	switch {
	case errors.Is(err, ErrNotExist):
		return c, "no cache"
	case err != nil:
		return c, err.Error()
	case snap.Version != extraction.SchemaVersion:
		return c, fmt.Sprintf("cache schema version %d, want %d", snap.Version, extraction.SchemaVersion)
	}

	for rel, entry := range snap.Files {
		if entry != nil {
			c.files[rel] = entry
		}
	}
	return c, ""
}

// ReadHeader decodes the snapshot at path without keeping its symbols.
func ReadHeader(path string) (Header, error) {
	snap, err := readSnapshot(path)
	if err != nil {
		return Header{}, err
	}
	return Header{Version: snap.Version, FileCount: len(snap.Files), UpdatedAt: snap.UpdatedAt}, nil
}

func readSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to read cache snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &snap, nil
}

// Lookup fingerprints the file at absPath and returns the cached symbols for
// rel if the fingerprint matches. The fingerprint is returned either way so a
// miss can be recorded with Update without hashing the file again.
func (c *Cache) Lookup(absPath, rel string) ([]extraction.Symbol, Fingerprint, bool, error) {
	fp, err := FingerprintFile(absPath)
	if err != nil {
		return nil, Fingerprint{}, false, err
	}

	c.mu.RLock()
	entry, ok := c.files[rel]
	c.mu.RUnlock()

	if !ok || entry.MTime != fp.MTime || entry.Hash != fp.Hash {
		return nil, fp, false, nil
	}

	symbols := make([]extraction.Symbol, len(entry.Symbols))
	copy(symbols, entry.Symbols)
	return symbols, fp, true, nil
}

// Update records the symbols extracted from rel at fingerprint fp.
func (c *Cache) Update(rel string, fp Fingerprint, symbols []extraction.Symbol) {
	stored := make([]extraction.Symbol, len(symbols))
	copy(stored, symbols)

	c.mu.Lock()
	c.files[rel] = &Entry{Fingerprint: fp, Symbols: stored}
	c.mu.Unlock()
}

// Prune drops every entry whose path is not in current and returns how many
// were removed.
func (c *Cache) Prune(current []string) int {
	keep := make(map[string]struct{}, len(current))
	for _, rel := range current {
		keep[rel] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for rel := range c.files {
		if _, ok := keep[rel]; !ok {
			delete(c.files, rel)
			removed++
		}
	}
	return removed
}

// Persist writes the whole cache as one snapshot, atomically.
func (c *Cache) Persist() error {
	c.mu.RLock()
	snap := snapshot{
		Version:   extraction.SchemaVersion,
		UpdatedAt: time.Now().UTC(),
		Files:     c.files,
	}
	err := fsutil.WriteJSONAtomic(c.path, snap)
	c.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to persist symbol cache: %w", err)
	}
	return nil
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Paths returns the cached relative paths, sorted.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	paths := make([]string, 0, len(c.files))
	for rel := range c.files {
		paths = append(paths, rel)
	}
	c.mu.RUnlock()

	sort.Strings(paths)
	return paths
}

// FingerprintFile stats and hashes a file.
func FingerprintFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, err
	}

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	sum := h.Sum128().Bytes()

	return Fingerprint{
		MTime: info.ModTime().UnixNano(),
		Size:  info.Size(),
		Hash:  hex.EncodeToString(sum[:]),
	}, nil
}
