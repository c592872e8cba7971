package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	readyAt      atomic.Int64 // unix nanos; 0 means ready immediately
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received.
// /health returns 503 shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetReadyAfter marks the service as starting until delay has elapsed from now.
func SetReadyAfter(delay time.Duration) {
	if delay <= 0 {
		readyAt.Store(0)
		return
	}
	readyAt.Store(time.Now().Add(delay).UnixNano())
}

// IsReady reports whether the startup delay has elapsed.
func IsReady() bool {
	at := readyAt.Load()
	return at == 0 || time.Now().UnixNano() >= at
}
