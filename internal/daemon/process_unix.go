//go:build unix

package daemon

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so a kill reaches
// anything it spawned, and so terminal signals aimed at the service do not.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcessGroup sends SIGKILL to the child's process group.
func killProcessGroup(p *os.Process) error {
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func classifyExit(state *os.ProcessState) ExitStatus {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if ok && ws.Signaled() {
		sig := ws.Signal()
		status := ExitStatus{Code: -1, Signal: unix.SignalName(sig)}
		if status.Signal == "" {
			status.Signal = sig.String()
		}
		switch sig {
		case syscall.SIGXCPU:
			status.Kind = ExitCPULimit
		case syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGABRT:
			status.Kind = ExitMemory
		case syscall.SIGKILL:
			status.Kind = ExitKilled
		default:
			status.Kind = ExitSignal
		}
		return status
	}

	code := state.ExitCode()
	if code == 0 {
		return ExitStatus{Kind: ExitClean}
	}
	return ExitStatus{Kind: ExitError, Code: code}
}
