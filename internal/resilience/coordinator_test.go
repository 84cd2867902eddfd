package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/screenveil/screenveil/internal/errors"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestCoordinatorSuccess(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())

	calls := 0
	got, degraded := Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		},
		func() int { return -1 },
	)

	if got != 42 || degraded {
		t.Errorf("Execute = (%d, %v), want (42, false)", got, degraded)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	st := c.Stats()
	if st.Total != 1 || st.Failures != 0 || st.Health != Healthy {
		t.Errorf("Stats = %+v, want 1 event, 0 failures, healthy", st)
	}
}

func TestCoordinatorRetriesThenSucceeds(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())

	calls := 0
	got, degraded := Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, apperrors.New(apperrors.NetworkUnavailable, "detect_faces", "endpoint down")
			}
			return 7, nil
		},
		func() int { return -1 },
	)

	if got != 7 || degraded {
		t.Errorf("Execute = (%d, %v), want (7, false)", got, degraded)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if s := c.BreakerState("detect_faces", apperrors.NetworkUnavailable); s != Closed {
		t.Errorf("breaker state = %v, want Closed", s)
	}
}

func TestCoordinatorExhaustsToFallback(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())

	calls := 0
	got, degraded := Execute(context.Background(), c, "detect_nsfw",
		func(ctx context.Context) (bool, error) {
			calls++
			return false, apperrors.New(apperrors.ClassifierError, "detect_nsfw", "inference failed")
		},
		func() bool { return true },
	)

	if !got || !degraded {
		t.Errorf("Execute = (%v, %v), want fallback (true, true)", got, degraded)
	}
	if calls != 3 { // initial + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestCoordinatorNonRetryableStops(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())

	calls := 0
	got, degraded := Execute(context.Background(), c, "detect_nsfw",
		func(ctx context.Context) (bool, error) {
			calls++
			return false, errors.New("opaque failure")
		},
		func() bool { return true },
	)

	if !got || !degraded {
		t.Errorf("Execute = (%v, %v), want fallback (true, true)", got, degraded)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCoordinatorShortCircuitsWhenOpen(t *testing.T) {
	c := NewCoordinator(Config{Threshold: 3, Window: time.Minute, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}, testRetryConfig())

	calls := 0
	attempt := func(ctx context.Context) (int, error) {
		calls++
		return 0, apperrors.New(apperrors.NetworkUnavailable, "detect_faces", "endpoint down")
	}
	fallback := func() int { return -1 }

	// Three failures in one call open the breaker.
	if _, degraded := Execute(context.Background(), c, "detect_faces", attempt, fallback); !degraded {
		t.Fatal("expected degraded result")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if s := c.BreakerState("detect_faces", apperrors.NetworkUnavailable); s != Open {
		t.Fatalf("breaker state = %v, want Open", s)
	}

	// Open breaker short-circuits without invoking attempt.
	got, degraded := Execute(context.Background(), c, "detect_faces", attempt, fallback)
	if got != -1 || !degraded {
		t.Errorf("Execute = (%d, %v), want (-1, true)", got, degraded)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (attempt must not run while open)", calls)
	}
}

func TestCoordinatorProbeRecovery(t *testing.T) {
	clk := newFakeClock()
	c := NewCoordinator(Config{Threshold: 1, Window: time.Minute, ResetTimeout: 10 * time.Second, HalfOpenSuccesses: 1}, testRetryConfig())
	c.now = clk.now

	// One failure opens the breaker; the retry inside the same call is
	// already short-circuited.
	calls := 0
	_, degraded := Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, apperrors.New(apperrors.NetworkUnavailable, "detect_faces", "endpoint down")
		},
		func() int { return -1 },
	)
	if !degraded || calls != 1 {
		t.Fatalf("degraded = %v, calls = %d, want true, 1", degraded, calls)
	}

	// After the cooldown the next call is admitted as the probe and its
	// success closes the breaker.
	clk.advance(11 * time.Second)
	got, degraded := Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) { return 42, nil },
		func() int { return -1 },
	)
	if got != 42 || degraded {
		t.Errorf("Execute after cooldown = (%d, %v), want (42, false)", got, degraded)
	}
	if s := c.BreakerState("detect_faces", apperrors.NetworkUnavailable); s != Closed {
		t.Errorf("breaker state = %v, want Closed", s)
	}
}

func TestCoordinatorStrategyHook(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())

	var kinds []apperrors.Kind
	c.OnKind(apperrors.ProcessingTimeout, func(ctx context.Context, kind apperrors.Kind) {
		kinds = append(kinds, kind)
	})

	_, _ = Execute(context.Background(), c, "analyze",
		func(ctx context.Context) (int, error) {
			return 0, apperrors.New(apperrors.ProcessingTimeout, "analyze", "budget exceeded")
		},
		func() int { return 0 },
	)

	if len(kinds) != 3 { // one per attempt
		t.Fatalf("strategy invocations = %d, want 3", len(kinds))
	}
	for _, k := range kinds {
		if k != apperrors.ProcessingTimeout {
			t.Errorf("strategy kind = %v, want ProcessingTimeout", k)
		}
	}

	// Unregistering stops further invocations.
	c.OnKind(apperrors.ProcessingTimeout, nil)
	kinds = kinds[:0]
	_, _ = Execute(context.Background(), c, "analyze",
		func(ctx context.Context) (int, error) {
			return 0, apperrors.New(apperrors.ProcessingTimeout, "analyze", "budget exceeded")
		},
		func() int { return 0 },
	)
	if len(kinds) != 0 {
		t.Errorf("strategy invocations after unregister = %d, want 0", len(kinds))
	}
}

func TestCoordinatorBreakersKeyedByKind(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, _ = Execute(context.Background(), c, "classify",
		func(ctx context.Context) (int, error) {
			return 0, apperrors.New(apperrors.NetworkUnavailable, "classify", "down")
		},
		func() int { return 0 },
	)
	_, _ = Execute(context.Background(), c, "classify",
		func(ctx context.Context) (int, error) {
			return 0, apperrors.New(apperrors.StorageFailure, "classify", "disk full")
		},
		func() int { return 0 },
	)

	states := c.Breakers()
	if len(states) != 2 {
		t.Fatalf("breaker count = %d, want 2: %v", len(states), states)
	}
	if _, ok := states["classify:network"]; !ok {
		t.Error("missing breaker for classify:network")
	}
	if _, ok := states["classify:storage"]; !ok {
		t.Error("missing breaker for classify:storage")
	}
}

func TestCoordinatorContextCancelled(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	got, degraded := Execute(ctx, c, "detect_faces",
		func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		},
		func() int { return -1 },
	)

	if got != -1 || !degraded {
		t.Errorf("Execute = (%d, %v), want (-1, true)", got, degraded)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestCoordinatorStats(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), testRetryConfig())

	// One unclassifiable failure (single attempt) and nine successes.
	_, _ = Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) { return 0, errors.New("opaque") },
		func() int { return 0 },
	)
	for i := 0; i < 9; i++ {
		_, _ = Execute(context.Background(), c, "detect_faces",
			func(ctx context.Context) (int, error) { return 1, nil },
			func() int { return 0 },
		)
	}

	st := c.Stats()
	if st.Total != 10 || st.Failures != 1 {
		t.Fatalf("Stats = %+v, want 10 events with 1 failure", st)
	}
	if st.Rate != 0.1 {
		t.Errorf("Rate = %v, want 0.1", st.Rate)
	}
	if st.PerKind["unknown"] != 1 {
		t.Errorf("PerKind = %v, want unknown:1", st.PerKind)
	}
	if st.Health != Recovering {
		t.Errorf("Health = %v, want Recovering", st.Health)
	}
}

func TestCoordinatorOpenBreakerDegradesHealth(t *testing.T) {
	c := NewCoordinator(Config{Threshold: 3, Window: time.Minute, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}, testRetryConfig())

	// Open the detect_faces:network breaker.
	_, _ = Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) {
			return 0, apperrors.New(apperrors.NetworkUnavailable, "detect_faces", "down")
		},
		func() int { return 0 },
	)

	// Enough successes elsewhere to keep the windowed rate low.
	for i := 0; i < 20; i++ {
		_, _ = Execute(context.Background(), c, "detect_nsfw",
			func(ctx context.Context) (bool, error) { return false, nil },
			func() bool { return true },
		)
	}

	st := c.Stats()
	if st.Rate >= DegradedErrorRate {
		t.Fatalf("Rate = %v, want below %v for this test", st.Rate, DegradedErrorRate)
	}
	if st.Health != Degraded {
		t.Errorf("Health = %v, want Degraded while a breaker is open", st.Health)
	}
	if len(st.OpenBreakers) != 1 || st.OpenBreakers[0] != "detect_faces:network" {
		t.Errorf("OpenBreakers = %v, want [detect_faces:network]", st.OpenBreakers)
	}
}

func TestCoordinatorReset(t *testing.T) {
	c := NewCoordinator(Config{Threshold: 1, Window: time.Minute, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}, testRetryConfig())

	_, _ = Execute(context.Background(), c, "detect_faces",
		func(ctx context.Context) (int, error) {
			return 0, apperrors.New(apperrors.NetworkUnavailable, "detect_faces", "down")
		},
		func() int { return 0 },
	)
	if s := c.BreakerState("detect_faces", apperrors.NetworkUnavailable); s != Open {
		t.Fatalf("breaker state = %v, want Open", s)
	}

	c.Reset()

	if s := c.BreakerState("detect_faces", apperrors.NetworkUnavailable); s != Closed {
		t.Errorf("breaker state after reset = %v, want Closed", s)
	}
	if st := c.Stats(); st.Total != 0 || st.Health != Healthy {
		t.Errorf("Stats after reset = %+v, want empty and healthy", st)
	}
}

func TestHealthString(t *testing.T) {
	tests := []struct {
		h    Health
		want string
	}{
		{Healthy, "healthy"},
		{Recovering, "recovering"},
		{Degraded, "degraded"},
		{Critical, "critical"},
	}

	for _, tt := range tests {
		if got := tt.h.String(); got != tt.want {
			t.Errorf("Health(%d).String() = %q, want %q", tt.h, got, tt.want)
		}
	}
}
