package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mvp-joe/repo-map/internal/cache"
	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// Staleness reasons.
const (
	ReasonNoStore      = "no store"
	ReasonNoCache      = "no cache"
	ReasonCacheCorrupt = "cache corrupt"
	ReasonSchema       = "schema mismatch"
	ReasonFileCount    = "file count changed"
	ReasonModified     = "files modified since last index"
	ReasonUpToDate     = "up to date"
	ReasonCheckFailed  = "staleness check failed"
)

const defaultSampleWindow = 100

// Detector decides whether the index needs rebuilding. It only reads the
// store, the cache snapshot and the file tree.
//
// Checking every file's mtime does not scale, so each call samples a window
// of the discovered files. The window rotates between calls so repeated
// periodic checks eventually cover the whole tree.
type Detector struct {
	layout     config.Layout
	discovery  *FileDiscovery
	sampleSize int

	mu     sync.Mutex
	cursor int
}

// NewDetector creates a detector for the project described by layout.
func NewDetector(layout config.Layout, cfg *config.Config) (*Detector, error) {
	discovery, err := NewFileDiscovery(layout.Root, layout.Dir, cfg.Paths.Code, cfg.Paths.Ignore)
	if err != nil {
		return nil, fmt.Errorf("invalid path patterns: %w", err)
	}
	sample := cfg.Staleness.SampleSize
	if sample <= 0 {
		sample = defaultSampleWindow
	}
	return &Detector{layout: layout, discovery: discovery, sampleSize: sample}, nil
}

// IsStale reports whether the index is stale and why. Checks run in order
// and stop at the first stale verdict.
func (d *Detector) IsStale(ctx context.Context) (bool, string) {
	if !storage.Exists(d.layout.Store) {
		return true, ReasonNoStore
	}

	header, err := cache.ReadHeader(d.layout.Cache)
	switch {
	case errors.Is(err, cache.ErrNotExist):
		return true, ReasonNoCache
	case err != nil:
		return true, ReasonCacheCorrupt
	case header.Version != extraction.SchemaVersion:
		return true, ReasonSchema
	}

	files, err := d.discovery.Discover()
	if err != nil {
		return false, fmt.Sprintf("%s: %v", ReasonCheckFailed, err)
	}
	if len(files) != header.FileCount {
		return true, ReasonFileCount
	}

	lastWrite, err := d.lastWrite(ctx)
	if err != nil {
		return false, fmt.Sprintf("%s: %v", ReasonCheckFailed, err)
	}

	for _, rel := range d.sample(files) {
		info, err := os.Stat(filepath.Join(d.layout.Root, filepath.FromSlash(rel)))
		if err != nil {
			// Vanished since discovery; the next count check catches it.
			continue
		}
		if info.ModTime().After(lastWrite) {
			return true, ReasonModified
		}
	}

	return false, ReasonUpToDate
}

// lastWrite is the time the store last committed a snapshot: last_indexed
// from metadata, or the database file's mtime for stores that never
// completed a run.
func (d *Detector) lastWrite(ctx context.Context) (time.Time, error) {
	meta, err := storage.ReadMetadata(ctx, d.layout.Store)
	if err == nil && !meta.LastIndexed.IsZero() {
		return meta.LastIndexed, nil
	}

	info, statErr := os.Stat(d.layout.Store)
	if statErr != nil {
		if err != nil {
			return time.Time{}, err
		}
		return time.Time{}, statErr
	}
	return info.ModTime(), nil
}

// sample returns the next window of files and advances the cursor.
func (d *Detector) sample(files []string) []string {
	if len(files) <= d.sampleSize {
		return files
	}

	d.mu.Lock()
	start := d.cursor % len(files)
	d.cursor = start + d.sampleSize
	d.mu.Unlock()

	window := make([]string, 0, d.sampleSize)
	for i := 0; i < d.sampleSize; i++ {
		window = append(window, files[(start+i)%len(files)])
	}
	return window
}
