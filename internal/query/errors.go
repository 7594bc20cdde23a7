package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// Sentinel errors. Callers distinguish them with errors.Is.
var (
	// ErrNotIndexed means no completed index exists yet. A background run
	// has been requested; retry later.
	ErrNotIndexed = errors.New("project has not been indexed yet")

	// ErrIndexFailed means the last run failed and there is no previous
	// snapshot to serve.
	ErrIndexFailed = errors.New("indexing failed")

	// ErrInProgress is matched by *InProgressError.
	ErrInProgress = errors.New("indexing in progress")

	// ErrSymbolNotFound means no stored symbol matches the request.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrAmbiguous is matched by *AmbiguousError.
	ErrAmbiguous = errors.New("ambiguous symbol name")

	// ErrFileMissing means the symbol's file was deleted since indexing.
	ErrFileMissing = errors.New("file no longer exists")

	// ErrFileUnreadable means the symbol's file exists but cannot be read.
	ErrFileUnreadable = errors.New("file cannot be read")

	// ErrAlreadyIndexing means a reindex was requested during a run.
	ErrAlreadyIndexing = errors.New("indexing already in progress")

	// ErrInvalidArgument reports a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")
)

// AmbiguousError lists every symbol matching a name that had to resolve to
// exactly one.
type AmbiguousError struct {
	Name    string
	Matches []extraction.Symbol
}

func (e *AmbiguousError) Error() string {
	locations := make([]string, len(e.Matches))
	for i, m := range e.Matches {
		locations[i] = fmt.Sprintf("%s %s at %s", m.Kind, m.FullName(), m.Location())
	}
	return fmt.Sprintf("%d symbols match %q; pass kind or file to choose one: %s",
		len(e.Matches), e.Name, strings.Join(locations, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}

// InProgressError is returned by reads that waited for an in-flight run and
// gave up. It carries a best-effort progress snapshot instead of results.
type InProgressError struct {
	Progress indexer.Progress
	Percent  float64
	ETA      time.Duration // zero when unknown
	Elapsed  time.Duration // since the run started
	Waited   time.Duration
}

func (e *InProgressError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "indexing in progress: %.0f%%", e.Percent)
	p := e.Progress
	switch p.Phase {
	case indexer.PhaseParsing:
		fmt.Fprintf(&b, " (%d/%d files parsed, %d symbols found)", p.FilesParsed, p.FilesToParse, p.SymbolsFound)
	case indexer.PhaseScanning:
		fmt.Fprintf(&b, " (%d/%d files scanned)", p.FilesScanned, p.FilesTotal)
	}
	if e.ETA > 0 {
		fmt.Fprintf(&b, ", about %s remaining", e.ETA.Round(time.Second))
	}
	b.WriteString("; retry shortly")
	return b.String()
}

func (e *InProgressError) Is(target error) bool {
	return target == ErrInProgress
}
