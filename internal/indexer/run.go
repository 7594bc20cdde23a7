package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/repo-map/internal/cache"
	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/indexer/parsers"
	"github.com/mvp-joe/repo-map/internal/repomap"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// lockWait bounds how long a run waits for another holder of the index lock.
const lockWait = 2 * time.Second

// Options configures one extraction run.
type Options struct {
	Layout config.Layout
	Config *config.Config

	// RunID identifies the run in metadata and the progress file.
	RunID string

	// Force ignores the cache snapshot and parses every file.
	Force bool

	// Verbose logs every skipped file.
	Verbose bool

	// Reporter receives progress callbacks in addition to the progress file.
	Reporter ProgressReporter
}

// RunStats summarizes a completed run.
type RunStats struct {
	RunID     string
	Files     int
	CacheHits int
	Parsed    int
	Skipped   int
	Vanished  int
	Pruned    int
	Symbols   int
	Duration  time.Duration
}

type fileResult struct {
	rel     string
	symbols []extraction.Symbol
	fp      cache.Fingerprint
	hit     bool
	gone    bool
}

// Run performs a complete extraction run: discover files, reuse cached
// symbols where the fingerprint matches, parse the rest in parallel, then
// persist the cache and replace the store in one transaction.
//
// Any error after the store is opened is recorded as status=failed before
// Run returns, so the index is never left stuck at "indexing".
func Run(ctx context.Context, opts Options) (stats *RunStats, err error) {
	start := time.Now()
	layout := opts.Layout
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	project := layout.ProjectName()

	lock, err := acquireRunLock(ctx, layout.Lock)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	store, err := storage.Open(layout.Store)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	defer func() {
		if err == nil {
			return
		}
		if ferr := store.FailRunUnconditionally(context.Background(), opts.RunID, err.Error()); ferr != nil {
			log.Printf("[%s] failed to record indexing failure: %v", project, ferr)
		}
	}()

	meta, err := store.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if meta.Status != storage.StatusIndexing || meta.RunID != opts.RunID {
		if err := store.BeginRun(ctx, opts.RunID, start); err != nil {
			return nil, fmt.Errorf("failed to mark run started: %w", err)
		}
	}

	progress := NewProgressFile(layout.Progress, opts.RunID)
	reporter := MultiReporter{progress}
	if opts.Reporter != nil {
		reporter = append(reporter, opts.Reporter)
	}

	discovery, err := NewFileDiscovery(layout.Root, layout.Dir, cfg.Paths.Code, cfg.Paths.Ignore)
	if err != nil {
		return nil, fmt.Errorf("invalid path patterns: %w", err)
	}
	files, err := discovery.Discover()
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	reporter.OnDiscoveryComplete(len(files))

	var symbolCache *cache.Cache
	if opts.Force {
		symbolCache = cache.New(layout.Cache)
	} else {
		var reason string
		symbolCache, reason = cache.Load(layout.Cache)
		if reason != "" {
			log.Printf("[%s] Starting with an empty symbol cache: %s", project, reason)
		}
	}

	workers := cfg.Index.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]fileResult, len(files))
	if err := scanFiles(ctx, layout.Root, files, symbolCache, workers, results, reporter); err != nil {
		return nil, err
	}

	registry := parsers.NewRegistry()
	skipped, err := parseMisses(ctx, layout.Root, registry, symbolCache, workers, results, reporter, func(rel, reason string) {
		if opts.Verbose {
			log.Printf("[%s] Skipped %s: %s", project, rel, reason)
		}
	})
	if err != nil {
		return nil, err
	}

	reporter.OnWriting()

	stats = &RunStats{RunID: opts.RunID, Skipped: skipped}
	var all []extraction.Symbol
	present := make([]string, 0, len(results))
	for _, r := range results {
		if r.gone {
			stats.Vanished++
			continue
		}
		present = append(present, r.rel)
		if r.hit {
			stats.CacheHits++
		} else {
			stats.Parsed++
		}
		all = append(all, r.symbols...)
	}
	stats.Files = len(present)
	stats.Symbols = len(all)

	stats.Pruned = symbolCache.Prune(present)
	if err := symbolCache.Persist(); err != nil {
		return nil, err
	}

	if err := store.ReplaceAll(ctx, all, storage.RunStats{
		RunID:     opts.RunID,
		FileCount: stats.Files,
		Finished:  time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to write symbol store: %w", err)
	}

	if _, err := repomap.WriteFile(layout.RepoMap, all, repomap.Options{
		Root: layout.Root,
		Thresholds: repomap.Thresholds{
			Name: cfg.Analysis.SimilarNameThreshold,
			Doc:  cfg.Analysis.SimilarDocThreshold,
		},
	}); err != nil {
		log.Printf("[%s] Warning: %v", project, err)
	}

	stats.Duration = time.Since(start)
	reporter.OnComplete(stats)
	if err := progress.Err(); err != nil {
		log.Printf("[%s] Warning: progress file not written: %v", project, err)
	}

	log.Printf("[%s] Indexed %d files (%d cached, %d parsed, %d skipped), %d symbols in %s",
		project, stats.Files, stats.CacheHits, stats.Parsed, stats.Skipped, stats.Symbols,
		stats.Duration.Round(time.Millisecond))
	return stats, nil
}

func acquireRunLock(ctx context.Context, path string) (*IndexLock, error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	return AcquireLock(lockCtx, path)
}

// scanFiles fingerprints every file and fills results with cache hits. Each
// file is touched by exactly one goroutine.
func scanFiles(ctx context.Context, root string, files []string, c *cache.Cache, workers int, results []fileResult, reporter ProgressReporter) error {
	reporter.OnScanStart(len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			symbols, fp, hit, err := c.Lookup(filepath.Join(root, filepath.FromSlash(rel)), rel)
			results[i] = fileResult{rel: rel, symbols: symbols, fp: fp, hit: hit}
			if errors.Is(err, os.ErrNotExist) {
				// Deleted between discovery and now.
				results[i].gone = true
			}
			reporter.OnFileScanned(rel, hit, len(symbols))
			return nil
		})
	}
	return g.Wait()
}

// parseMisses parses every cache miss in parallel and records the result in
// the cache. It returns the number of files the front-ends skipped.
func parseMisses(ctx context.Context, root string, registry *parsers.Registry, c *cache.Cache, workers int, results []fileResult, reporter ProgressReporter, onSkip func(rel, reason string)) (int, error) {
	var misses []int
	for i, r := range results {
		if !r.hit && !r.gone {
			misses = append(misses, i)
		}
	}
	reporter.OnParseStart(len(misses))

	skipped := make([]bool, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, i := range misses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			r := &results[i]
			source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(r.rel)))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					r.gone = true
					reporter.OnFileParsed(r.rel, extraction.Skip("file vanished"))
					return nil
				}
				// Unreadable files stay in the cache with no symbols so the
				// cached file count keeps matching discovery.
				onSkip(r.rel, err.Error())
				skipped[i] = true
				c.Update(r.rel, cache.Fingerprint{}, nil)
				reporter.OnFileParsed(r.rel, extraction.Skip("%v", err))
				return nil
			}

			result := registry.Parse(r.rel, source)
			if !result.OK() {
				onSkip(r.rel, result.Skipped)
				skipped[i] = true
			}
			r.symbols = result.Symbols
			c.Update(r.rel, r.fp, result.Symbols)
			reporter.OnFileParsed(r.rel, result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, s := range skipped {
		if s {
			n++
		}
	}
	return n, nil
}
