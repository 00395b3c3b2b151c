package vellogd

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewCircuitBreaker_AppliesDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("SuccessThreshold = %d, want 2", cb.config.SuccessThreshold)
	}
	if cb.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cb.config.Timeout)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(failures, successes int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: failures,
		SuccessThreshold: successes,
		Timeout:          time.Second,
	})
	cb.now = clock.Now
	return cb, clock
}

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 1)

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while circuit open")
	}
	if got := cb.Stats().TotalRejections; got != 1 {
		t.Errorf("TotalRejections = %d, want 1", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, 1)

	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed after non-consecutive failures", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  CircuitState
	}{
		{"probe succeeds", succeed, CircuitClosed},
		{"probe fails", fail, CircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(1, 1)
			_ = cb.Execute(fail)
			if cb.State() != CircuitOpen {
				t.Fatalf("state = %v, want open", cb.State())
			}

			clock.Advance(time.Second)
			if cb.State() != CircuitHalfOpen {
				t.Fatalf("state after timeout = %v, want half-open", cb.State())
			}
			_ = cb.Execute(tt.probe)
			if got := cb.State(); got != tt.want {
				t.Errorf("state after probe = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, 1)
	_ = cb.Execute(fail)
	cb.Reset()

	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Errorf("Execute after reset: %v", err)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	changes := make(chan [2]CircuitState, 4)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(from, to CircuitState) {
			changes <- [2]CircuitState{from, to}
		},
	})
	_ = cb.Execute(fail)

	select {
	case got := <-changes:
		if got != [2]CircuitState{CircuitClosed, CircuitOpen} {
			t.Errorf("transition = %v, want closed->open", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no state change reported")
	}
}
