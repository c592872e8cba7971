package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests currently being served so shutdown can drain them.
type InFlightTracker struct {
	count atomic.Int64
}

// Begin marks a request as started and returns the func that marks it done.
func (t *InFlightTracker) Begin() (done func()) {
	t.count.Add(1)
	return func() { t.count.Add(-1) }
}

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// Drain blocks until no request is in flight or ctx is done, polling every interval.
func (t *InFlightTracker) Drain(ctx context.Context, interval time.Duration) error {
	if t.Count() == 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.Count() == 0 {
				return nil
			}
		}
	}
}

// requests is the process-wide tracker fed by MetricsMiddleware.
var requests = &InFlightTracker{}

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return requests.Count()
}

// DrainInFlight waits for in-flight requests to finish. Called after http.Server.Shutdown.
func DrainInFlight(ctx context.Context, interval time.Duration) error {
	return requests.Drain(ctx, interval)
}
