//go:build linux || darwin

package daemon

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ApplyLimits lowers the calling process's own soft limits: virtual memory
// (RLIMIT_AS) and CPU time (RLIMIT_CPU). Called by the extraction child
// before it does any work. A zero value leaves that limit alone.
func ApplyLimits(memoryBytes uint64, cpu time.Duration) error {
	if memoryBytes > 0 {
		if err := lowerLimit(unix.RLIMIT_AS, memoryBytes); err != nil {
			return fmt.Errorf("failed to set memory limit: %w", err)
		}
	}
	if cpu > 0 {
		seconds := uint64(cpu / time.Second)
		if seconds == 0 {
			seconds = 1
		}
		if err := lowerLimit(unix.RLIMIT_CPU, seconds); err != nil {
			return fmt.Errorf("failed to set CPU limit: %w", err)
		}
	}
	return nil
}

// lowerLimit sets the soft limit to value, capped at the hard limit.
func lowerLimit(resource int, value uint64) error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(resource, &rl); err != nil {
		return err
	}
	if value > rl.Max {
		value = rl.Max
	}
	rl.Cur = value
	return unix.Setrlimit(resource, &rl)
}
