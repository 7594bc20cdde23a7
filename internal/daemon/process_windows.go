//go:build windows

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in a new process group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup terminates the child. Windows has no process group kill
// short of job objects; the child does not spawn helpers.
func killProcessGroup(p *os.Process) error {
	return p.Kill()
}

func classifyExit(state *os.ProcessState) ExitStatus {
	code := state.ExitCode()
	if code == 0 {
		return ExitStatus{Kind: ExitClean}
	}
	return ExitStatus{Kind: ExitError, Code: code}
}
