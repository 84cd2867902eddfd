// Package resilience provides fault tolerance patterns
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // Normal operation
	Open                  // Failing fast
	HalfOpen              // Testing recovery
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// Errors
var (
	ErrOpen     = errors.New("circuit breaker open")
	ErrHalfOpen = errors.New("circuit breaker half-open: probe in flight")
)

// Breaker implements the circuit breaker pattern. Failures are counted
// within a rolling window; at the threshold the breaker opens, waits out
// the reset timeout, then admits a single probe call.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  []time.Time // timestamps inside the rolling window
	successes int
	probing   bool
	openedAt  time.Time

	onStateChange func(from, to State)
}

// New creates a breaker with config
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// WithHook sets state change callback (for metrics/logging). The hook
// runs with the breaker locked; it must not call back into the breaker.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.onStateChange = fn
	return b
}

// Allow checks if a call should proceed; returns nil if allowed. An open
// breaker whose reset timeout has elapsed moves to half-open and admits
// the caller as the probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) > b.cfg.ResetTimeout {
			b.transitionLocked(HalfOpen)
			b.probing = true
			return nil
		}
		return ErrOpen
	case HalfOpen:
		if b.probing {
			return ErrHalfOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Success records a successful call
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.transitionLocked(Closed)
		}
	}
}

// Failure records a failed call
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case HalfOpen:
		b.probing = false
		b.openLocked(now)
	case Closed:
		b.failures = append(b.failures, now)
		b.pruneLocked(now)
		if len(b.failures) >= b.cfg.Threshold {
			b.openLocked(now)
		}
	}
}

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
}

func (b *Breaker) openLocked(now time.Time) {
	b.openedAt = now
	b.transitionLocked(Open)
}

// releaseProbe returns an unused half-open probe slot, for callers that
// gate on several breakers and abort before attempting the call.
func (b *Breaker) releaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.probing = false
	}
}

// pruneLocked drops failure timestamps that have aged out of the window.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.failures) && b.failures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}

// transitionLocked changes state with side effects
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case Closed:
		b.failures = b.failures[:0]
		b.successes = 0
		b.probing = false
		slog.Info("circuit breaker closed")
	case Open:
		b.successes = 0
		slog.Warn("circuit breaker opened", "failures", len(b.failures))
	case HalfOpen:
		b.successes = 0
		slog.Info("circuit breaker half-open")
	}

	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

// Execute runs fn with circuit breaker protection
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

// ExecuteWithResult runs fn returning value and error with circuit protection
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return result, nil
}
