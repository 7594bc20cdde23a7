package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ExitKind classifies how an extraction child ended. It is diagnostic only;
// every non-clean kind leads to the same status=failed outcome.
type ExitKind int

const (
	ExitClean    ExitKind = iota // exit code 0
	ExitCPULimit                 // SIGXCPU from RLIMIT_CPU
	ExitMemory                   // SIGSEGV, SIGBUS or SIGABRT, typically RLIMIT_AS
	ExitKilled                   // SIGKILL from the watchdog or elsewhere
	ExitSignal                   // any other signal
	ExitError                    // non-zero exit code
)

func (k ExitKind) String() string {
	switch k {
	case ExitClean:
		return "clean"
	case ExitCPULimit:
		return "cpu limit"
	case ExitMemory:
		return "memory limit"
	case ExitKilled:
		return "killed"
	case ExitSignal:
		return "signal"
	case ExitError:
		return "error"
	}
	return "unknown"
}

// ExitStatus is a classified process exit.
type ExitStatus struct {
	Kind   ExitKind
	Code   int    // exit code, -1 when signaled
	Signal string // signal name when signaled
}

// Clean reports whether the child exited with code 0.
func (e ExitStatus) Clean() bool {
	return e.Kind == ExitClean
}

func (e ExitStatus) String() string {
	switch e.Kind {
	case ExitClean:
		return "exited cleanly"
	case ExitCPULimit:
		return fmt.Sprintf("killed by %s: CPU time limit exceeded", e.Signal)
	case ExitMemory:
		return fmt.Sprintf("killed by %s: likely memory limit exceeded", e.Signal)
	case ExitKilled:
		return fmt.Sprintf("killed by %s", e.Signal)
	case ExitSignal:
		return fmt.Sprintf("terminated by %s", e.Signal)
	}
	return fmt.Sprintf("exited with code %d", e.Code)
}

// Handle tracks one spawned extraction child. It is created by the
// Supervisor and observed by the Watchdog.
type Handle struct {
	RunID     string
	PID       int
	StartedAt time.Time

	process *os.Process
	done    chan struct{}

	mu   sync.Mutex
	exit ExitStatus
}

// startHandle starts cmd in its own process group and begins waiting on it.
func startHandle(cmd *exec.Cmd, runID string, now time.Time) (*Handle, error) {
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &Handle{
		RunID:     runID,
		PID:       cmd.Process.Pid,
		StartedAt: now,
		process:   cmd.Process,
		done:      make(chan struct{}),
	}
	go func() {
		// Wait only errors for non-exit conditions; the state is still
		// populated for a process that ran.
		_ = cmd.Wait()
		status := ExitStatus{Kind: ExitError, Code: -1}
		if cmd.ProcessState != nil {
			status = classifyExit(cmd.ProcessState)
		}
		h.mu.Lock()
		h.exit = status
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Exited returns the exit status once the child has exited.
func (h *Handle) Exited() (ExitStatus, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.exit, true
	default:
		return ExitStatus{}, false
	}
}

// Alive reports whether the child is still running.
func (h *Handle) Alive() bool {
	_, exited := h.Exited()
	return !exited
}

// Done is closed when the child exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Kill force-terminates the child's whole process group and waits up to
// grace for it to be reaped. It reports whether the child is gone.
func (h *Handle) Kill(grace time.Duration) bool {
	if !h.Alive() {
		return true
	}
	if err := killProcessGroup(h.process); err != nil {
		h.process.Kill()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// HandleInfo is a point-in-time view of the supervisor handle.
type HandleInfo struct {
	RunID     string
	PID       int
	StartedAt time.Time
	Running   bool
	Exit      *ExitStatus
}

func (h *Handle) info() HandleInfo {
	info := HandleInfo{RunID: h.RunID, PID: h.PID, StartedAt: h.StartedAt, Running: true}
	if exit, ok := h.Exited(); ok {
		info.Running = false
		info.Exit = &exit
	}
	return info
}
