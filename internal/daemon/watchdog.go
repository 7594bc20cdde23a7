package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// defaultOrphanGrace is how long an "indexing" status may exist with neither
// a live handle nor a held index lock before it is treated as a crash.
const defaultOrphanGrace = 30 * time.Second

// SweepResult describes what one watchdog pass did.
type SweepResult struct {
	Reaped  *ExitStatus // exit of a child reaped this pass
	Killed  bool        // a live child was force-terminated
	Failed  bool        // metadata was flipped to failed
	Message string      // error message written, if any
}

// Watchdog detects exited, hung and orphaned extraction runs and makes sure
// the durable status never stays at "indexing" for a run that is gone.
//
// The store's status is authoritative; the supervisor handle only says how
// to kill a child. After a service restart the handle is empty, and a stale
// "indexing" status is still corrected from the store alone.
type Watchdog struct {
	sup         *Supervisor
	opener      *storage.Opener
	lockPath    string
	deadline    time.Duration
	killGrace   time.Duration
	orphanGrace time.Duration
	now         func() time.Time
	project     string
}

// NewWatchdog creates a watchdog over sup with the given wall-clock deadline.
func NewWatchdog(sup *Supervisor, opener *storage.Opener, deadline, killGrace time.Duration) *Watchdog {
	return &Watchdog{
		sup:         sup,
		opener:      opener,
		lockPath:    sup.layout.Lock,
		deadline:    deadline,
		killGrace:   killGrace,
		orphanGrace: defaultOrphanGrace,
		now:         time.Now,
		project:     sup.project,
	}
}

// Deadline returns the wall-clock limit per run.
func (w *Watchdog) Deadline() time.Duration {
	return w.deadline
}

// Run sweeps once immediately and then every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context, interval time.Duration) {
	w.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: reap an exited child, then kill and fail a run
// past its deadline, then fail an orphaned run.
func (w *Watchdog) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	// Step 1: reap.
	if info, exit, ok := w.sup.Reap(); ok {
		result.Reaped = &exit
		if exit.Clean() {
			log.Printf("[%s] Indexer run %s finished (%s)", w.project, info.RunID, exit)
		} else {
			log.Printf("[%s] Indexer run %s failed: %s", w.project, info.RunID, exit)
			msg := fmt.Sprintf("indexer %s", exit)
			if w.fail(ctx, info.RunID, msg) {
				result.Failed = true
				result.Message = msg
			}
		}
	}

	store, err := w.opener.Existing()
	if err != nil {
		if !errors.Is(err, storage.ErrNoStore) {
			log.Printf("[%s] Watchdog failed to open store: %v", w.project, err)
		}
		return result
	}
	meta, err := store.Metadata(ctx)
	if err != nil {
		log.Printf("[%s] Watchdog failed to read metadata: %v", w.project, err)
		return result
	}
	if meta.Status != storage.StatusIndexing {
		return result
	}

	now := w.now()
	elapsed := meta.Elapsed(now)

	// Step 2: hang. Applies with or without a live handle.
	if elapsed > w.deadline {
		if info, ok := w.sup.Kill(w.killGrace); ok {
			result.Killed = true
			log.Printf("[%s] Killed indexer (pid %d, run %s) after %s", w.project, info.PID, info.RunID, elapsed.Round(time.Second))
		}
		msg := fmt.Sprintf("indexing exceeded deadline: ran for %s (limit %s)",
			elapsed.Round(time.Second), w.deadline)
		if w.fail(ctx, meta.RunID, msg) {
			result.Failed = true
			result.Message = msg
		}
		return result
	}

	// Step 3: orphan. Nobody is running the recorded run.
	if w.sup.Running() || elapsed < w.orphanGrace {
		return result
	}
	held, err := indexer.LockHeld(w.lockPath)
	if err != nil {
		log.Printf("[%s] Watchdog failed to probe index lock: %v", w.project, err)
		return result
	}
	if held {
		return result
	}
	msg := fmt.Sprintf("indexing process exited without recording a result (started %s ago)",
		elapsed.Round(time.Second))
	if w.fail(ctx, meta.RunID, msg) {
		result.Failed = true
		result.Message = msg
	}
	return result
}

// fail conditionally marks runID failed, logging the outcome.
func (w *Watchdog) fail(ctx context.Context, runID, msg string) bool {
	store, err := w.opener.Existing()
	if err != nil {
		return false
	}
	applied, err := store.FailRun(ctx, runID, msg)
	if err != nil {
		log.Printf("[%s] Failed to record indexing failure: %v", w.project, err)
		return false
	}
	if applied {
		log.Printf("[%s] Marked run %s failed: %s", w.project, runID, msg)
	}
	return applied
}

// Crashed reports whether meta describes a run that is gone: status
// indexing, no live child in this process, and either past the deadline or
// not holding the index lock after the orphan grace.
func (w *Watchdog) Crashed(meta storage.Metadata) bool {
	if meta.Status != storage.StatusIndexing || w.sup.Running() {
		return false
	}
	elapsed := meta.Elapsed(w.now())
	if elapsed > w.deadline {
		return true
	}
	if elapsed < w.orphanGrace {
		return false
	}
	held, err := indexer.LockHeld(w.lockPath)
	return err == nil && !held
}
