package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(cfg)
	cb.now = clock.Now
	return cb, clock
}

// TestCircuitBreaker_OpensAfterThreshold verifies that consecutive failures open the
// breaker and subsequent calls are rejected without invoking fn.
func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 3, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Call(ctx, func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Call() err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn should not run while open")
	}
}

// TestCircuitBreaker_HalfOpenRecovery verifies open -> half_open -> closed after the
// timeout elapses and the success threshold is met.
func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(t, Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Second,
		Component:        "weather_api",
		OnStateChange: func(component string, from, to State) {
			transitions = append(transitions, component+":"+from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	_ = cb.Call(ctx, func() error { return errBoom })
	clock.Advance(11 * time.Second)

	if err := cb.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open", cb.State())
	}
	if err := cb.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("second probe err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}

	want := []string{"weather_api:closed->open", "weather_api:open->half_open", "weather_api:half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

// TestCircuitBreaker_HalfOpenFailureReopens verifies a failed probe reopens immediately.
func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, Config{FailureThreshold: 1, OpenTimeout: time.Second})
	ctx := context.Background()

	_ = cb.Call(ctx, func() error { return errBoom })
	clock.Advance(2 * time.Second)
	_ = cb.Call(ctx, func() error { return errBoom })

	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want open", cb.State())
	}
}

// TestCircuitBreaker_IgnoresCallerCancellation verifies that a caller giving up does not
// count as a dependency failure.
func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())

	err := cb.Call(ctx, func() error {
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

// TestCircuitBreaker_IsFailureFilter verifies errors excluded by IsFailure do not trip the breaker.
func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	benign := errors.New("benign")
	cb, _ := newTestBreaker(t, Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return err != nil && !errors.Is(err, benign) },
	})

	_ = cb.Call(context.Background(), func() error { return benign })
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}
