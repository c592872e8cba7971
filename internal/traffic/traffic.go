// Package traffic keeps sliding windows of request and weather-lookup outcomes.
// It backs the overload and degraded checks in /health.
package traffic

import (
	"sync"
	"time"
)

// retention bounds memory; windows longer than this see at most retention worth of events.
const retention = 10 * time.Minute

var defaultTracker Tracker

// RecordRequest records an accepted API request.
func RecordRequest() { defaultTracker.RecordRequest() }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.RecordDenied() }

// RecordWeather records a weather lookup outcome.
func RecordWeather(available bool) { defaultTracker.RecordWeather(available) }

// RequestCount returns accepted plus denied requests within the window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// UnavailableRate returns (unavailable, total) weather lookups within the window.
func UnavailableRate(window time.Duration) (unavailable, total int) {
	return defaultTracker.UnavailableRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker maintains timestamp windows per outcome kind.
type Tracker struct {
	mu          sync.Mutex
	accepted    []time.Time
	denied      []time.Time
	available   []time.Time
	unavailable []time.Time
	now         func() time.Time
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// RecordRequest records an accepted request.
func (t *Tracker) RecordRequest() { t.record(&t.accepted) }

// RecordDenied records a rate-limit denial.
func (t *Tracker) RecordDenied() { t.record(&t.denied) }

// RecordWeather records a weather lookup outcome.
func (t *Tracker) RecordWeather(available bool) {
	if available {
		t.record(&t.available)
		return
	}
	t.record(&t.unavailable)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns accepted plus denied requests within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	return countSince(t.accepted, cutoff) + countSince(t.denied, cutoff)
}

// DenialCount returns denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denied, t.clock().Add(-window))
}

// UnavailableRate returns (unavailable, total) weather lookups within the window.
func (t *Tracker) UnavailableRate(window time.Duration) (unavailable, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	unavailable = countSince(t.unavailable, cutoff)
	return unavailable, unavailable + countSince(t.available, cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accepted, t.denied, t.available, t.unavailable = nil, nil, nil, nil
}

// countSince counts timestamps not before cutoff. Slices are append-ordered.
func countSince(times []time.Time, cutoff time.Time) int {
	for i, ts := range times {
		if !ts.Before(cutoff) {
			return len(times) - i
		}
	}
	return 0
}

// pruneLocked drops entries older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for _, slice := range []*[]time.Time{&t.accepted, &t.denied, &t.available, &t.unavailable} {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
}
