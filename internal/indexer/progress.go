package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mvp-joe/repo-map/internal/fsutil"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// ProgressReporter provides callbacks for reporting indexing progress.
// Implementations can display progress bars, write the progress file, or
// remain silent. Scan and parse callbacks may arrive from several goroutines.
type ProgressReporter interface {
	// OnDiscoveryComplete is called when file discovery finishes.
	OnDiscoveryComplete(files int)

	// OnScanStart is called before cache lookups begin.
	OnScanStart(totalFiles int)

	// OnFileScanned is called after each cache lookup with the number of
	// symbols reused on a hit.
	OnFileScanned(relPath string, hit bool, symbols int)

	// OnParseStart is called before cache misses are parsed.
	OnParseStart(filesToParse int)

	// OnFileParsed is called after each parsed file.
	OnFileParsed(relPath string, result extraction.Result)

	// OnWriting is called when the cache and store are being written.
	OnWriting()

	// OnComplete is called when indexing completes successfully.
	OnComplete(stats *RunStats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., supervised child without a terminal).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryComplete(files int)                         {}
func (n *NoOpProgressReporter) OnScanStart(totalFiles int)                            {}
func (n *NoOpProgressReporter) OnFileScanned(relPath string, hit bool, symbols int)   {}
func (n *NoOpProgressReporter) OnParseStart(filesToParse int)                         {}
func (n *NoOpProgressReporter) OnFileParsed(relPath string, result extraction.Result) {}
func (n *NoOpProgressReporter) OnWriting()                                            {}
func (n *NoOpProgressReporter) OnComplete(stats *RunStats)                            {}

// MultiReporter fans every callback out to each reporter in order.
type MultiReporter []ProgressReporter

func (m MultiReporter) OnDiscoveryComplete(files int) {
	for _, r := range m {
		r.OnDiscoveryComplete(files)
	}
}

func (m MultiReporter) OnScanStart(totalFiles int) {
	for _, r := range m {
		r.OnScanStart(totalFiles)
	}
}

func (m MultiReporter) OnFileScanned(relPath string, hit bool, symbols int) {
	for _, r := range m {
		r.OnFileScanned(relPath, hit, symbols)
	}
}

func (m MultiReporter) OnParseStart(filesToParse int) {
	for _, r := range m {
		r.OnParseStart(filesToParse)
	}
}

func (m MultiReporter) OnFileParsed(relPath string, result extraction.Result) {
	for _, r := range m {
		r.OnFileParsed(relPath, result)
	}
}

func (m MultiReporter) OnWriting() {
	for _, r := range m {
		r.OnWriting()
	}
}

func (m MultiReporter) OnComplete(stats *RunStats) {
	for _, r := range m {
		r.OnComplete(stats)
	}
}

// Phase is the stage an extraction run is in.
type Phase string

const (
	PhaseDiscovering Phase = "discovering"
	PhaseScanning    Phase = "scanning"
	PhaseParsing     Phase = "parsing"
	PhaseWriting     Phase = "writing"
	PhaseDone        Phase = "done"
)

// Progress is the side-channel snapshot of an in-flight run. It is only an
// estimate for callers waiting on a run; the store metadata stays the
// authority on whether indexing is happening.
type Progress struct {
	RunID          string    `json:"run_id"`
	Phase          Phase     `json:"status"`
	FilesTotal     int       `json:"files_total"`
	FilesScanned   int       `json:"files_scanned"`
	CacheHits      int       `json:"cache_hits"`
	FilesToParse   int       `json:"files_to_parse"`
	FilesParsed    int       `json:"files_parsed"`
	SymbolsFound   int       `json:"symbols_found"`
	StartedAt      time.Time `json:"started_at"`
	ParseStartedAt time.Time `json:"parse_started_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Percent estimates completion in [0, 100]. Scanning counts for the first
// tenth of the run and parsing for the rest.
func (p Progress) Percent() float64 {
	const scanShare = 10.0
	switch p.Phase {
	case PhaseWriting, PhaseDone:
		return 100
	case PhaseParsing:
		if p.FilesToParse == 0 {
			return 100
		}
		return scanShare + (100-scanShare)*float64(p.FilesParsed)/float64(p.FilesToParse)
	case PhaseScanning:
		if p.FilesTotal == 0 {
			return 0
		}
		return scanShare * float64(p.FilesScanned) / float64(p.FilesTotal)
	}
	return 0
}

// ETA estimates the time remaining from the parse rate observed so far.
// It reports false when there is not enough data to estimate.
func (p Progress) ETA(now time.Time) (time.Duration, bool) {
	if p.Phase != PhaseParsing || p.FilesParsed == 0 || p.ParseStartedAt.IsZero() {
		return 0, false
	}
	elapsed := now.Sub(p.ParseStartedAt)
	if elapsed <= 0 {
		return 0, false
	}
	perFile := elapsed / time.Duration(p.FilesParsed)
	remaining := p.FilesToParse - p.FilesParsed
	if remaining < 0 {
		remaining = 0
	}
	return perFile * time.Duration(remaining), true
}

// ReadProgress reads the progress file at path.
func ReadProgress(path string) (Progress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Progress{}, err
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, fmt.Errorf("failed to decode progress file: %w", err)
	}
	return p, nil
}

// RemoveProgress deletes the progress file, ignoring a missing one.
func RemoveProgress(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// progressFileInterval throttles progress file writes.
const progressFileInterval = 250 * time.Millisecond

// ProgressFile is a ProgressReporter that keeps the progress side-channel
// file up to date. Writes are atomic and throttled; phase changes are always
// written.
type ProgressFile struct {
	path     string
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	progress  Progress
	lastWrite time.Time
	err       error
}

// NewProgressFile returns a reporter writing to path for runID.
func NewProgressFile(path, runID string) *ProgressFile {
	now := time.Now()
	return &ProgressFile{
		path:     path,
		interval: progressFileInterval,
		now:      time.Now,
		progress: Progress{
			RunID:     runID,
			Phase:     PhaseDiscovering,
			StartedAt: now,
			UpdatedAt: now,
		},
	}
}

// Snapshot returns the current progress.
func (f *ProgressFile) Snapshot() Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

// Err returns the first write error, if any. Progress write failures never
// fail a run.
func (f *ProgressFile) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *ProgressFile) update(force bool, fn func(p *Progress)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fn(&f.progress)
	now := f.now()
	f.progress.UpdatedAt = now

	if !force && now.Sub(f.lastWrite) < f.interval {
		return
	}
	f.lastWrite = now
	if err := fsutil.WriteJSONAtomic(f.path, f.progress); err != nil && f.err == nil {
		f.err = err
	}
}

func (f *ProgressFile) OnDiscoveryComplete(files int) {
	f.update(true, func(p *Progress) {
		p.FilesTotal = files
	})
}

func (f *ProgressFile) OnScanStart(totalFiles int) {
	f.update(true, func(p *Progress) {
		p.Phase = PhaseScanning
		p.FilesTotal = totalFiles
	})
}

func (f *ProgressFile) OnFileScanned(relPath string, hit bool, symbols int) {
	f.update(false, func(p *Progress) {
		p.FilesScanned++
		if hit {
			p.CacheHits++
			p.SymbolsFound += symbols
		}
	})
}

func (f *ProgressFile) OnParseStart(filesToParse int) {
	f.update(true, func(p *Progress) {
		p.Phase = PhaseParsing
		p.FilesToParse = filesToParse
		p.ParseStartedAt = f.now()
	})
}

func (f *ProgressFile) OnFileParsed(relPath string, result extraction.Result) {
	f.update(false, func(p *Progress) {
		p.FilesParsed++
		p.SymbolsFound += len(result.Symbols)
	})
}

func (f *ProgressFile) OnWriting() {
	f.update(true, func(p *Progress) {
		p.Phase = PhaseWriting
	})
}

func (f *ProgressFile) OnComplete(stats *RunStats) {
	f.update(true, func(p *Progress) {
		p.Phase = PhaseDone
		p.SymbolsFound = stats.Symbols
	})
}
