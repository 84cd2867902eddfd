package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerInitialState(t *testing.T) {
	b := New(DefaultConfig())
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 2})

	for i := 0; i < 3; i++ {
		b.Failure()
	}

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerRejectsWhenOpen(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b.Failure()

	if err := b.Allow(); err != ErrOpen {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
}

func TestBreakerTransitionsToHalfOpen(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Millisecond, HalfOpenSuccesses: 1})
	b.Failure()

	time.Sleep(5 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Errorf("Allow() = %v, want nil", err)
	}
	if b.State() != HalfOpen {
		t.Errorf("state = %v, want HalfOpen", b.State())
	}
}

func TestBreakerFullCycle(t *testing.T) {
	clk := newFakeClock()
	b := New(DefaultConfig())
	b.now = clk.now

	// Five failures inside the rolling window open the breaker.
	for i := 0; i < 5; i++ {
		b.Failure()
		clk.advance(time.Second)
	}
	if b.State() != Open {
		t.Fatalf("state after 5 failures = %v, want Open", b.State())
	}
	if err := b.Allow(); err != ErrOpen {
		t.Fatalf("Allow() while open = %v, want ErrOpen", err)
	}

	// After the reset timeout the next check admits a probe.
	clk.advance(DefaultResetTimeout + time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown = %v, want nil", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("state after cooldown = %v, want HalfOpen", b.State())
	}

	// One success closes it again.
	b.Success()
	if b.State() != Closed {
		t.Fatalf("state after probe success = %v, want Closed", b.State())
	}

	// Reopen and verify a failed probe goes straight back to open.
	for i := 0; i < 5; i++ {
		b.Failure()
	}
	clk.advance(DefaultResetTimeout + time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after second cooldown = %v, want nil", err)
	}
	b.Failure()
	if b.State() != Open {
		t.Errorf("state after probe failure = %v, want Open", b.State())
	}
}

func TestBreakerFailuresAgeOut(t *testing.T) {
	clk := newFakeClock()
	b := New(Config{Threshold: 3, Window: 10 * time.Second, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b.now = clk.now

	b.Failure()
	b.Failure()
	clk.advance(11 * time.Second)

	// The first two failures are outside the window now.
	b.Failure()
	b.Failure()
	if b.State() != Closed {
		t.Fatalf("state = %v, want Closed after old failures aged out", b.State())
	}

	b.Failure()
	if b.State() != Open {
		t.Errorf("state = %v, want Open after 3 failures in window", b.State())
	}
}

func TestBreakerSingleProbe(t *testing.T) {
	clk := newFakeClock()
	b := New(Config{Threshold: 1, Window: time.Minute, ResetTimeout: time.Second, HalfOpenSuccesses: 1})
	b.now = clk.now

	b.Failure()
	clk.advance(2 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("first Allow() = %v, want nil", err)
	}
	if err := b.Allow(); err != ErrHalfOpen {
		t.Fatalf("second Allow() = %v, want ErrHalfOpen", err)
	}

	b.releaseProbe()
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after release = %v, want nil", err)
	}
}

func TestBreakerClosesAfterSuccesses(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Millisecond, HalfOpenSuccesses: 2})
	b.Failure()

	time.Sleep(5 * time.Millisecond)
	_ = b.Allow() // transition to half-open

	b.Success()
	b.Success()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Millisecond, HalfOpenSuccesses: 3})
	b.Failure()

	time.Sleep(5 * time.Millisecond)
	_ = b.Allow() // transition to half-open

	b.Failure()

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerReset(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b.Failure()

	if b.State() != Open {
		t.Fatal("expected open state")
	}

	b.Reset()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerExecute(t *testing.T) {
	b := New(Config{Threshold: 2, ResetTimeout: time.Second, HalfOpenSuccesses: 1})

	// Success case
	err := b.Execute(func() error { return nil })
	if err != nil {
		t.Errorf("Execute success = %v, want nil", err)
	}

	// Failure case
	testErr := errors.New("test error")
	err = b.Execute(func() error { return testErr })
	if err != testErr {
		t.Errorf("Execute failure = %v, want %v", err, testErr)
	}
}

func TestBreakerExecuteWithResult(t *testing.T) {
	b := New(DefaultConfig())

	result, err := ExecuteWithResult(b, func() (int, error) {
		return 42, nil
	})
	if err != nil || result != 42 {
		t.Errorf("ExecuteWithResult = (%d, %v), want (42, nil)", result, err)
	}
}

func TestBreakerHook(t *testing.T) {
	var transitions []struct{ from, to State }
	b := New(Config{Threshold: 1, ResetTimeout: time.Millisecond, HalfOpenSuccesses: 1})
	b.WithHook(func(from, to State) {
		transitions = append(transitions, struct{ from, to State }{from, to})
	})

	b.Failure()
	time.Sleep(5 * time.Millisecond)
	_ = b.Allow()
	b.Success()

	if len(transitions) != 3 {
		t.Errorf("got %d transitions, want 3", len(transitions))
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b := New(Config{Threshold: 100, ResetTimeout: time.Second, HalfOpenSuccesses: 10})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow()
			if i%2 == 0 {
				b.Success()
			} else {
				b.Failure()
			}
		}()
	}
	wg.Wait()

	// Just verify no race conditions - state is valid
	_ = b.State()
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Threshold != 5 {
		t.Errorf("Threshold = %d, want 5", cfg.Threshold)
	}
	if cfg.Window != 60*time.Second {
		t.Errorf("Window = %v, want 60s", cfg.Window)
	}
	if cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cfg.ResetTimeout)
	}
	if cfg.HalfOpenSuccesses != 1 {
		t.Errorf("HalfOpenSuccesses = %d, want 1", cfg.HalfOpenSuccesses)
	}
}
