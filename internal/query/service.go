// Package query answers symbol queries against the store while an
// extraction run may be replacing it in another process.
//
// Every read goes through a guard: a missing store starts a background run
// and reports ErrNotIndexed; an in-flight run is waited on for a bounded time
// and then reported as *InProgressError with a progress snapshot. Status and
// reindex requests never wait.
package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/daemon"
	"github.com/mvp-joe/repo-map/internal/fsutil"
	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// Supervisor starts background extraction runs.
type Supervisor interface {
	StartIndex(ctx context.Context) (bool, string)
	Current() (daemon.HandleInfo, bool)
}

// CrashDetector recognizes an "indexing" status whose run is gone.
type CrashDetector interface {
	Crashed(meta storage.Metadata) bool
}

// StalenessChecker decides whether the index needs rebuilding.
type StalenessChecker interface {
	IsStale(ctx context.Context) (bool, string)
}

// Options wires a Service.
type Options struct {
	Layout     config.Layout
	Config     *config.Config
	Opener     *storage.Opener
	Supervisor Supervisor
	Crash      CrashDetector // optional
	Staleness  StalenessChecker
}

// Service implements the query operations. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	layout    config.Layout
	cfg       config.QueryConfig
	opener    *storage.Opener
	sup       Supervisor
	crash     CrashDetector
	staleness StalenessChecker
	lines     *lineCache
	now       func() time.Time
	project   string
}

// NewService creates a query service.
func NewService(opts Options) (*Service, error) {
	if opts.Opener == nil {
		return nil, errors.New("query service requires a store opener")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	lines, err := newLineCache()
	if err != nil {
		return nil, err
	}
	return &Service{
		layout:    opts.Layout,
		cfg:       cfg.Query,
		opener:    opts.Opener,
		sup:       opts.Supervisor,
		crash:     opts.Crash,
		staleness: opts.Staleness,
		lines:     lines,
		now:       time.Now,
		project:   opts.Layout.ProjectName(),
	}, nil
}

// Close releases the line cache. The store opener is owned by the caller.
func (s *Service) Close() {
	s.lines.Close()
}

// Search returns symbols whose name matches the glob pattern, ordered by
// name. A limit <= 0 uses the configured default.
func (s *Service) Search(ctx context.Context, pattern string, kind extraction.Kind, limit int) ([]extraction.Symbol, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: pattern is required", ErrInvalidArgument)
	}
	if _, err := extraction.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}

	store, err := s.readStore(ctx)
	if err != nil {
		return nil, err
	}
	symbols, err := store.SearchByName(ctx, pattern, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return symbols, nil
}

// FileSymbols returns every symbol in file, ordered by line. A file that is
// neither indexed nor present on disk is ErrFileMissing.
func (s *Service) FileSymbols(ctx context.Context, file string) ([]extraction.Symbol, error) {
	rel, err := s.relPath(file)
	if err != nil {
		return nil, err
	}

	store, err := s.readStore(ctx)
	if err != nil {
		return nil, err
	}
	symbols, err := store.FileSymbols(ctx, rel)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 && !fsutil.Exists(filepath.Join(s.layout.Root, filepath.FromSlash(rel))) {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, rel)
	}
	return symbols, nil
}

// Content is the live source of one symbol.
type Content struct {
	Symbol    extraction.Symbol
	StartLine int
	EndLine   int
	Source    string
	Estimated bool // no recorded end line; a fixed window is shown
}

// Location renders path:start-end.
func (c Content) Location() string {
	return fmt.Sprintf("%s:%d-%d", c.Symbol.FilePath, c.StartLine, c.EndLine)
}

// SymbolContent resolves name (optionally "Parent.member") to exactly one
// symbol and returns its source read from the live file. kind and file
// narrow the match; more than one remaining match is *AmbiguousError.
func (s *Service) SymbolContent(ctx context.Context, name string, kind extraction.Kind, file string) (*Content, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if _, err := extraction.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	filter := storage.SymbolFilter{Name: name, Kind: kind}
	if i := strings.LastIndex(name, "."); i > 0 && i < len(name)-1 {
		filter.Parent = name[:i]
		filter.Name = name[i+1:]
		filter.HasParent = true
	}
	if file != "" {
		rel, err := s.relPath(file)
		if err != nil {
			return nil, err
		}
		filter.FilePath = rel
	}

	store, err := s.readStore(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := store.FindSymbols(ctx, filter)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	case 1:
	default:
		return nil, &AmbiguousError{Name: name, Matches: matches}
	}

	return s.readContent(matches[0])
}

func (s *Service) readContent(sym extraction.Symbol) (*Content, error) {
	abs := filepath.Join(s.layout.Root, filepath.FromSlash(sym.FilePath))
	lines, err := s.lines.Lines(abs, sym.FilePath)
	if err != nil {
		return nil, err
	}
	if sym.Line < 1 || sym.Line > len(lines) {
		return nil, fmt.Errorf("%w: %s now has %d lines but %s starts at line %d; reindex",
			ErrSymbolNotFound, sym.FilePath, len(lines), sym.FullName(), sym.Line)
	}

	c := &Content{Symbol: sym, StartLine: sym.Line, EndLine: sym.EndLine}
	if !sym.HasEndLine() {
		c.EndLine = sym.Line + s.cfg.ContentWindow
		c.Estimated = true
	}
	c.EndLine = min(c.EndLine, len(lines))
	c.Source = strings.Join(lines[c.StartLine-1:c.EndLine], "\n")
	return c, nil
}

// ListFiles returns the distinct indexed file paths, optionally filtered by
// a glob pattern. A limit <= 0 uses the configured default.
func (s *Service) ListFiles(ctx context.Context, pattern string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}

	store, err := s.readStore(ctx)
	if err != nil {
		return nil, err
	}
	files, err := store.ListFiles(ctx, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return files, nil
}

// readStore is the read guard shared by every query.
func (s *Service) readStore(ctx context.Context) (*storage.Store, error) {
	store, err := s.opener.Existing()
	if errors.Is(err, storage.ErrNoStore) {
		return nil, s.notIndexed(ctx)
	}
	if err != nil {
		return nil, err
	}

	meta, err := store.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if meta.Status == storage.StatusIndexing {
		if s.crash != nil && s.crash.Crashed(meta) {
			// The watchdog will flip it; serve the last snapshot meanwhile.
			if meta.HasSnapshot() {
				return store, nil
			}
			return nil, fmt.Errorf("%w: the indexing process died before finishing", ErrIndexFailed)
		}
		if meta, err = s.waitForRun(ctx, store, meta); err != nil {
			return nil, err
		}
	}

	switch {
	case meta.HasSnapshot():
		return store, nil
	case meta.Status == storage.StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrIndexFailed, meta.ErrorMessage)
	default:
		return nil, s.notIndexed(ctx)
	}
}

// waitForRun polls metadata until the run leaves "indexing" or the wait
// bound passes, in which case it returns *InProgressError.
func (s *Service) waitForRun(ctx context.Context, store *storage.Store, meta storage.Metadata) (storage.Metadata, error) {
	start := s.now()
	timeout := time.NewTimer(s.cfg.WaitTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return meta, ctx.Err()
		case <-timeout.C:
			return meta, s.inProgress(meta, s.now().Sub(start))
		case <-ticker.C:
			current, err := store.Metadata(ctx)
			if err != nil {
				return meta, err
			}
			if current.Status != storage.StatusIndexing {
				return current, nil
			}
			meta = current
		}
	}
}

func (s *Service) inProgress(meta storage.Metadata, waited time.Duration) *InProgressError {
	now := s.now()
	e := &InProgressError{
		Elapsed: meta.Elapsed(now),
		Waited:  waited,
	}
	p, err := indexer.ReadProgress(s.layout.Progress)
	if err != nil || (meta.RunID != "" && p.RunID != meta.RunID) {
		// Not written yet by this run.
		return e
	}
	e.Progress = p
	e.Percent = p.Percent()
	if eta, ok := p.ETA(now); ok {
		e.ETA = eta
	}
	return e
}

// notIndexed requests a background run and returns ErrNotIndexed.
func (s *Service) notIndexed(ctx context.Context) error {
	if s.sup == nil {
		return ErrNotIndexed
	}
	accepted, msg := s.sup.StartIndex(ctx)
	if accepted {
		log.Printf("[%s] No index yet, started background indexing", s.project)
		return fmt.Errorf("%w: indexing started in the background, retry shortly", ErrNotIndexed)
	}
	return fmt.Errorf("%w: %s", ErrNotIndexed, msg)
}

// relPath converts a user supplied path to the slash separated path stored
// for it. Absolute paths must be inside the project root.
func (s *Service) relPath(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return "", fmt.Errorf("%w: file is required", ErrInvalidArgument)
	}
	if filepath.IsAbs(file) {
		rel, err := filepath.Rel(s.layout.Root, file)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s is outside the project root", ErrInvalidArgument, file)
		}
		file = rel
	}
	rel := path.Clean(filepath.ToSlash(file))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s is outside the project root", ErrInvalidArgument, file)
	}
	return rel, nil
}
