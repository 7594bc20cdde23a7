package daemon

import "errors"

// ErrLimitsUnsupported is returned where the OS offers no per-process
// resource limits. The watchdog's deadline still applies.
var ErrLimitsUnsupported = errors.New("resource limits are not supported on this platform")
