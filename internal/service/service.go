// Package service runs one project's long-lived index service: the query
// service plus the periodic staleness sweep, the watchdog and the file
// watcher that schedules early sweeps.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/daemon"
	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/query"
	"github.com/mvp-joe/repo-map/internal/storage"
	"github.com/mvp-joe/repo-map/internal/watcher"
)

// Service owns every background component of a project. Create with New,
// run with Start, shut down with Stop.
type Service struct {
	layout  config.Layout
	cfg     *config.Config
	project string

	opener      *storage.Opener
	supervisor  *daemon.Supervisor
	watchdog    *daemon.Watchdog
	detector    *indexer.Detector
	query       *query.Service
	fileWatcher watcher.FileWatcher // nil when watching is disabled
	headWatcher watcher.HeadWatcher // nil when watching is disabled or root is not a git repo

	// sweepCh asks the staleness loop for an early sweep.
	sweepCh chan struct{}

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New wires the service for the project at layout.Root. Nothing runs until
// Start is called.
func New(layout config.Layout, cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	detector, err := indexer.NewDetector(layout, cfg)
	if err != nil {
		return nil, err
	}

	opener := storage.NewOpener(layout.Store)
	sup := daemon.NewSupervisor(layout, opener)
	wd := daemon.NewWatchdog(sup, opener, cfg.Watchdog.Deadline, cfg.Watchdog.KillGrace)

	q, err := query.NewService(query.Options{
		Layout:     layout,
		Config:     cfg,
		Opener:     opener,
		Supervisor: sup,
		Crash:      wd,
		Staleness:  detector,
	})
	if err != nil {
		opener.Close()
		return nil, err
	}

	s := &Service{
		layout:     layout,
		cfg:        cfg,
		project:    layout.ProjectName(),
		opener:     opener,
		supervisor: sup,
		watchdog:   wd,
		detector:   detector,
		query:      q,
		sweepCh:    make(chan struct{}, 1),
	}

	if cfg.Watch.Enabled {
		discovery, err := indexer.NewFileDiscovery(layout.Root, layout.Dir, cfg.Paths.Code, cfg.Paths.Ignore)
		if err != nil {
			s.close()
			return nil, err
		}
		fw, err := watcher.NewFileWatcher(layout.Root, discovery, cfg.Watch.Debounce)
		if err != nil {
			// The periodic sweep still catches changes.
			log.Printf("[%s] File watching disabled: %v", s.project, err)
		} else {
			s.fileWatcher = fw
		}

		hw, err := watcher.NewHeadWatcher(layout.Root)
		switch {
		case err == nil:
			s.headWatcher = hw
		case errors.Is(err, watcher.ErrNotGitRepo):
		default:
			log.Printf("[%s] Branch watching disabled: %v", s.project, err)
		}
	}

	return s, nil
}

// Query returns the query service.
func (s *Service) Query() *query.Service {
	return s.query
}

// Supervisor returns the extraction supervisor.
func (s *Service) Supervisor() *daemon.Supervisor {
	return s.supervisor
}

// Start launches the background loops and returns immediately. Both sweeps
// run once right away: a restart with a stale "indexing" status is
// reconciled before anything else.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.fileWatcher != nil {
		if err := s.fileWatcher.Start(s.ctx, s.handleFileChanges); err != nil {
			s.cancel()
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
	}
	if s.headWatcher != nil {
		if err := s.headWatcher.Start(s.ctx, s.handleHeadChange); err != nil {
			log.Printf("[%s] Branch watching disabled: %v", s.project, err)
			s.headWatcher.Stop()
			s.headWatcher = nil
		}
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.watchdog.Run(s.ctx, s.cfg.Watchdog.Interval)
	}()
	go func() {
		defer s.wg.Done()
		s.stalenessLoop()
	}()

	log.Printf("[%s] Service started (root: %s)", s.project, s.layout.Root)
	return nil
}

// Stop shuts down the loops and releases resources. A running extraction
// child is left alone; it holds the index lock and finishes or fails on
// its own, and the next service instance reconciles it.
//
// Stop is safe to call multiple times.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.fileWatcher != nil {
			s.fileWatcher.Stop()
		}
		if s.headWatcher != nil {
			s.headWatcher.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.close()
		log.Printf("[%s] Service stopped", s.project)
	})
}

func (s *Service) close() {
	s.query.Close()
	s.opener.Close()
}

// SweepStaleness checks the index once and starts a run if it is stale.
// It reports whether a run was started and the staleness reason.
func (s *Service) SweepStaleness(ctx context.Context) (bool, string) {
	if s.supervisor.Running() {
		return false, daemon.MessageAlreadyIndexing
	}

	stale, reason := s.detector.IsStale(ctx)
	if !stale {
		return false, reason
	}

	accepted, msg := s.supervisor.StartIndex(ctx)
	if !accepted {
		log.Printf("[%s] Index is stale (%s) but reindex was not started: %s", s.project, reason, msg)
		return false, reason
	}
	log.Printf("[%s] Index is stale (%s), started background reindex", s.project, reason)
	return true, reason
}

func (s *Service) stalenessLoop() {
	s.SweepStaleness(s.ctx)

	ticker := time.NewTicker(s.cfg.Staleness.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.sweepCh:
		}
		s.SweepStaleness(s.ctx)
	}
}

// handleFileChanges schedules an early sweep. Sweeps are coalesced: one
// pending request covers any number of change batches.
func (s *Service) handleFileChanges(files []string) {
	log.Printf("[%s] %d source files changed, scheduling staleness check", s.project, len(files))
	s.requestSweep()
}

// handleHeadChange schedules an early sweep after a checkout. The file
// watcher usually reports the same change, the sweep request coalesces.
func (s *Service) handleHeadChange(oldRef, newRef string) {
	log.Printf("[%s] Branch switched %s -> %s, scheduling staleness check", s.project, oldRef, newRef)
	s.requestSweep()
}

func (s *Service) requestSweep() {
	select {
	case s.sweepCh <- struct{}{}:
	default:
	}
}
