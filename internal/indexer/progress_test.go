package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// Test Plan for progress reporting:
// - Percent weights scanning as the first tenth and parsing as the rest
// - ETA extrapolates the parse rate and is unavailable before any file is parsed
// - ProgressFile writes phase changes immediately and throttles per-file updates
// - ReadProgress round-trips the written file; RemoveProgress tolerates a missing file
// - MultiReporter fans out to every reporter

func TestProgress_Percent(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Progress{Phase: PhaseDiscovering}.Percent())
	assert.Equal(t, 5.0, Progress{Phase: PhaseScanning, FilesTotal: 10, FilesScanned: 5}.Percent())
	assert.Equal(t, 55.0, Progress{Phase: PhaseParsing, FilesToParse: 4, FilesParsed: 2}.Percent())
	assert.Equal(t, 100.0, Progress{Phase: PhaseParsing}.Percent())
	assert.Equal(t, 100.0, Progress{Phase: PhaseWriting}.Percent())
}

func TestProgress_ETA(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Progress{Phase: PhaseParsing, FilesToParse: 10, FilesParsed: 2, ParseStartedAt: start}

	eta, ok := p.ETA(start.Add(4 * time.Second))
	require.True(t, ok)
	assert.Equal(t, 16*time.Second, eta)

	_, ok = Progress{Phase: PhaseParsing, FilesToParse: 10, ParseStartedAt: start}.ETA(start.Add(time.Second))
	assert.False(t, ok)

	_, ok = Progress{Phase: PhaseScanning}.ETA(start)
	assert.False(t, ok)
}

func TestProgressFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	pf := NewProgressFile(path, "run-1")
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pf.now = func() time.Time { return clock }

	pf.OnDiscoveryComplete(3)
	pf.OnScanStart(3)

	got, err := ReadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, PhaseScanning, got.Phase)
	assert.Equal(t, 3, got.FilesTotal)

	// Within the throttle interval: in memory only.
	pf.OnFileScanned("a.py", true, 4)
	got, err = ReadProgress(path)
	require.NoError(t, err)
	assert.Zero(t, got.FilesScanned)
	assert.Equal(t, 1, pf.Snapshot().FilesScanned)

	clock = clock.Add(time.Second)
	pf.OnFileScanned("b.py", false, 0)
	got, err = ReadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FilesScanned)
	assert.Equal(t, 1, got.CacheHits)
	assert.Equal(t, 4, got.SymbolsFound)

	pf.OnParseStart(1)
	pf.OnFileParsed("b.py", extraction.Result{Symbols: make([]extraction.Symbol, 2)})
	pf.OnWriting()
	pf.OnComplete(&RunStats{Symbols: 6})

	got, err = ReadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, got.Phase)
	assert.Equal(t, 1, got.FilesParsed)
	assert.Equal(t, 6, got.SymbolsFound)
	assert.NoError(t, pf.Err())

	require.NoError(t, RemoveProgress(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, RemoveProgress(path))
}

type countingReporter struct {
	NoOpProgressReporter
	scanned, parsed int
}

func (c *countingReporter) OnFileScanned(relPath string, hit bool, symbols int) { c.scanned++ }
func (c *countingReporter) OnFileParsed(relPath string, result extraction.Result) {
	c.parsed++
}

func TestMultiReporter(t *testing.T) {
	t.Parallel()

	a, b := &countingReporter{}, &countingReporter{}
	m := MultiReporter{a, b}
	m.OnFileScanned("x", false, 0)
	m.OnFileParsed("x", extraction.Result{})
	m.OnComplete(&RunStats{})

	assert.Equal(t, 1, a.scanned)
	assert.Equal(t, 1, b.parsed)
}
