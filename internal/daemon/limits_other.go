//go:build !linux && !darwin

package daemon

import "time"

// ApplyLimits is a no-op on this platform.
func ApplyLimits(memoryBytes uint64, cpu time.Duration) error {
	return ErrLimitsUnsupported
}
