package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvp-joe/repo-map/internal/config"
	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// MessageAlreadyIndexing is returned by StartIndex when a run is in flight.
const MessageAlreadyIndexing = "indexing already in progress"

// CommandFunc builds the command for an extraction child. The supervisor sets
// the process group and output; the command must not be started.
type CommandFunc func(runID string) (*exec.Cmd, error)

// Supervisor owns the at-most-one extraction child of this process.
// All handle decisions happen under mu, so concurrent sweeps and manual
// triggers can never spawn two children.
type Supervisor struct {
	layout    config.Layout
	opener    *storage.Opener
	command   CommandFunc
	childArgs []string
	now       func() time.Time
	project   string

	mu       sync.Mutex
	handle   *Handle
	lastExit *ExitStatus
}

// NewSupervisor creates a supervisor that re-invokes the current executable
// in supervised child mode.
func NewSupervisor(layout config.Layout, opener *storage.Opener) *Supervisor {
	s := &Supervisor{
		layout:  layout,
		opener:  opener,
		now:     time.Now,
		project: layout.ProjectName(),
	}
	s.command = s.selfCommand
	return s
}

// SetCommand replaces the child command builder.
func (s *Supervisor) SetCommand(fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.command = fn
}

// SetChildArgs appends extra arguments (e.g. --config) to the default child
// command line.
func (s *Supervisor) SetChildArgs(args ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.childArgs = append([]string(nil), args...)
}

func (s *Supervisor) selfCommand(runID string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	args := []string{
		"index",
		"--supervised",
		"--run-id", runID,
		"--root", s.layout.Root,
	}
	return exec.Command(exe, append(args, s.childArgs...)...), nil
}

// StartIndex spawns an extraction child unless one is already running.
// It never blocks on the child; completion is observed by the watchdog.
func (s *Supervisor) StartIndex(ctx context.Context) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil && s.handle.Alive() {
		return false, MessageAlreadyIndexing
	}
	s.reapLocked()

	// A child from another process (a foreground `repomap index`, or a
	// previous service instance) holds the lock for its whole life.
	held, err := indexer.LockHeld(s.layout.Lock)
	if err != nil {
		return false, fmt.Sprintf("failed to check index lock: %v", err)
	}
	if held {
		return false, MessageAlreadyIndexing
	}

	if err := os.MkdirAll(s.layout.Dir, 0o755); err != nil {
		return false, fmt.Sprintf("failed to create state directory: %v", err)
	}

	store, err := s.opener.Open()
	if err != nil {
		return false, fmt.Sprintf("failed to open store: %v", err)
	}

	runID := uuid.NewString()
	start := s.now()
	if err := store.BeginRun(ctx, runID, start); err != nil {
		return false, fmt.Sprintf("failed to record run start: %v", err)
	}

	handle, err := s.spawn(runID, start)
	if err != nil {
		msg := fmt.Sprintf("failed to start indexer: %v", err)
		if _, ferr := store.FailRun(ctx, runID, msg); ferr != nil {
			log.Printf("[%s] Failed to record spawn failure: %v", s.project, ferr)
		}
		return false, msg
	}

	s.handle = handle
	log.Printf("[%s] Started indexer (pid %d, run %s)", s.project, handle.PID, runID)
	return true, fmt.Sprintf("indexing started (run %s)", runID)
}

func (s *Supervisor) spawn(runID string, start time.Time) (*Handle, error) {
	cmd, err := s.command(runID)
	if err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(s.layout.Log, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index log: %w", err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = s.layout.Root

	handle, err := startHandle(cmd, runID, start)
	// The child holds its own descriptor after Start.
	logFile.Close()
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Current returns a snapshot of the handle, or ok=false when there is none.
func (s *Supervisor) Current() (HandleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return HandleInfo{}, false
	}
	return s.handle.info(), true
}

// Running reports whether a child started by this supervisor is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && s.handle.Alive()
}

// LastExit returns the classification of the most recently reaped child.
func (s *Supervisor) LastExit() (ExitStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastExit == nil {
		return ExitStatus{}, false
	}
	return *s.lastExit, true
}

// Reap clears the handle if its child has exited, returning the handle and
// its exit status. ok is false when there was nothing to reap.
func (s *Supervisor) Reap() (HandleInfo, ExitStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return HandleInfo{}, ExitStatus{}, false
	}
	info := s.handle.info()
	exit, ok := s.reapLocked()
	return info, exit, ok
}

func (s *Supervisor) reapLocked() (ExitStatus, bool) {
	if s.handle == nil {
		return ExitStatus{}, false
	}
	exit, exited := s.handle.Exited()
	if !exited {
		return ExitStatus{}, false
	}
	s.lastExit = &exit
	s.handle = nil
	return exit, true
}

// Kill force-terminates the live child, if any, waits up to grace and
// clears the handle. It returns the info of the killed handle.
func (s *Supervisor) Kill(grace time.Duration) (HandleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return HandleInfo{}, false
	}
	h := s.handle
	if !h.Kill(grace) {
		log.Printf("[%s] Indexer (pid %d) did not exit within %s of SIGKILL", s.project, h.PID, grace)
	}
	info := h.info()
	if info.Exit != nil {
		s.lastExit = info.Exit
	}
	s.handle = nil
	return info, true
}
