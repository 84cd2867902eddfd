package resilience

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/screenveil/screenveil/internal/errors"
)

// Health classifies recent error rate into a coarse system state
type Health uint32

const (
	Healthy    Health = iota // Error rate negligible
	Recovering               // Elevated but subsiding
	Degraded                 // Sustained errors or an open breaker
	Critical                 // Most calls failing
)

// Error-rate cut points for health classification
const (
	RecoveringErrorRate = 0.1
	DegradedErrorRate   = 0.3
	CriticalErrorRate   = 0.6
)

func (h Health) String() string {
	return [...]string{"healthy", "recovering", "degraded", "critical"}[h]
}

func (h Health) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Strategy is a recovery hook invoked after a failure of its kind,
// before the next retry or the fallback. It must be fast and must not
// call back into the coordinator.
type Strategy func(ctx context.Context, kind apperrors.Kind)

// ErrorStats is a snapshot of recent error activity for telemetry.
type ErrorStats struct {
	Total        int            `json:"total"`
	Failures     int            `json:"failures"`
	Rate         float64        `json:"rate"`
	PerKind      map[string]int `json:"per_kind,omitempty"`
	OpenBreakers []string       `json:"open_breakers,omitempty"`
	Health       Health         `json:"health"`
}

type event struct {
	at      time.Time
	failure bool
	kind    apperrors.Kind
}

// Coordinator wraps calls to unreliable collaborators with retry,
// per-(operation, error kind) circuit breakers, and recovery strategy
// dispatch. It also keeps a rolling window of call outcomes to derive an
// error rate and health state.
type Coordinator struct {
	cfg   Config
	retry RetryConfig
	now   func() time.Time

	mu         sync.Mutex
	breakers   map[string]*Breaker
	strategies map[apperrors.Kind]Strategy
	events     []event
}

// NewCoordinator creates a coordinator with breaker and retry settings.
func NewCoordinator(cfg Config, retry RetryConfig) *Coordinator {
	return &Coordinator{
		cfg:        cfg.withDefaults(),
		retry:      retry.withDefaults(),
		now:        time.Now,
		breakers:   make(map[string]*Breaker),
		strategies: make(map[apperrors.Kind]Strategy),
	}
}

// OnKind registers the recovery strategy for an error kind. Registering
// nil removes the hook.
func (c *Coordinator) OnKind(kind apperrors.Kind, fn Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.strategies, kind)
		return
	}
	c.strategies[kind] = fn
}

// Execute runs attempt for op under retry and circuit breaker control.
// Failures are classified into an error kind, recorded against the
// breaker for that kind, and handed to any registered strategy before
// the next try. Returns fallback() and true when the breaker
// short-circuits the call or every attempt fails; fallback must be fast
// and side-effect free.
func Execute[T any](ctx context.Context, c *Coordinator, op string, attempt func(context.Context) (T, error), fallback func() T) (T, bool) {
	for att := 0; att <= c.retry.MaxRetries; att++ {
		if ctx.Err() != nil {
			return fallback(), true
		}
		if !c.allow(op) {
			slog.Debug("operation short-circuited", "op", op)
			return fallback(), true
		}

		result, err := attempt(ctx)
		if err == nil {
			c.success(op)
			return result, false
		}

		kind, strategy := c.failure(op, err)
		slog.Debug("operation failed", "op", op, "kind", kind, "attempt", att+1, "error", err)
		if strategy != nil {
			strategy(ctx, kind)
		}
		if !c.retry.IsRetryable(err) || att == c.retry.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fallback(), true
		case <-time.After(backoffDelay(c.retry, att)):
		}
	}
	return fallback(), true
}

// allow reports whether a call for op may proceed. All breakers under
// the op must admit it; probes consumed from half-open breakers are
// released if a later breaker rejects.
func (c *Coordinator) allow(op string) bool {
	bs := c.opBreakers(op)

	var probes []*Breaker
	for _, b := range bs {
		if err := b.Allow(); err != nil {
			for _, p := range probes {
				p.releaseProbe()
			}
			return false
		}
		if b.State() == HalfOpen {
			probes = append(probes, b)
		}
	}
	return true
}

func (c *Coordinator) success(op string) {
	bs := c.opBreakers(op)

	c.mu.Lock()
	now := c.now()
	c.events = append(c.events, event{at: now})
	c.pruneEventsLocked(now)
	c.mu.Unlock()

	for _, b := range bs {
		b.Success()
	}
}

func (c *Coordinator) failure(op string, err error) (apperrors.Kind, Strategy) {
	kind := apperrors.Classify(err)
	key := op + ":" + kind.String()

	c.mu.Lock()
	b, ok := c.breakers[key]
	if !ok {
		b = New(c.cfg)
		b.now = c.now
		c.breakers[key] = b
	}
	now := c.now()
	c.events = append(c.events, event{at: now, failure: true, kind: kind})
	c.pruneEventsLocked(now)
	fn := c.strategies[kind]
	c.mu.Unlock()

	b.Failure()
	return kind, fn
}

func (c *Coordinator) opBreakers(op string) []*Breaker {
	prefix := op + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	var bs []*Breaker
	for key, b := range c.breakers {
		if strings.HasPrefix(key, prefix) {
			bs = append(bs, b)
		}
	}
	return bs
}

func (c *Coordinator) pruneEventsLocked(now time.Time) {
	cutoff := now.Add(-c.cfg.Window)
	i := 0
	for i < len(c.events) && c.events[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.events = append(c.events[:0], c.events[i:]...)
	}
}

// BreakerState returns the state of the breaker for (op, kind), Closed
// if no failures of that kind have been recorded.
func (c *Coordinator) BreakerState(op string, kind apperrors.Kind) State {
	c.mu.Lock()
	b, ok := c.breakers[op+":"+kind.String()]
	c.mu.Unlock()
	if !ok {
		return Closed
	}
	return b.State()
}

// Breakers returns a snapshot of all breaker states by key.
func (c *Coordinator) Breakers() map[string]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]State, len(c.breakers))
	for key, b := range c.breakers {
		out[key] = b.State()
	}
	return out
}

// Stats returns a snapshot of windowed error activity and health.
func (c *Coordinator) Stats() ErrorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneEventsLocked(c.now())

	st := ErrorStats{Total: len(c.events)}
	for _, e := range c.events {
		if !e.failure {
			continue
		}
		st.Failures++
		if st.PerKind == nil {
			st.PerKind = make(map[string]int)
		}
		st.PerKind[e.kind.String()]++
	}
	if st.Total > 0 {
		st.Rate = float64(st.Failures) / float64(st.Total)
	}
	for key, b := range c.breakers {
		if b.State() == Open {
			st.OpenBreakers = append(st.OpenBreakers, key)
		}
	}
	sort.Strings(st.OpenBreakers)
	st.Health = healthFor(st.Rate, st.Total, len(st.OpenBreakers))
	return st
}

// Reset closes every breaker and clears the event window.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.breakers {
		b.Reset()
	}
	c.events = c.events[:0]
}

func healthFor(rate float64, total, open int) Health {
	switch {
	case total == 0 && open == 0:
		return Healthy
	case rate >= CriticalErrorRate:
		return Critical
	case rate >= DegradedErrorRate || open > 0:
		return Degraded
	case rate >= RecoveringErrorRate:
		return Recovering
	default:
		return Healthy
	}
}
