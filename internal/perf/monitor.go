package perf

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/screenveil/screenveil/internal/quality"
	"github.com/screenveil/screenveil/internal/syncx"
)

// Sample is one timed operation. Violation is derived on record from
// Elapsed against Target.
type Sample struct {
	At        time.Time
	Elapsed   time.Duration
	Target    time.Duration
	Op        string
	Level     quality.Level
	Violation bool
}

// State grades recent processing health.
type State uint32

const (
	StateOptimal State = iota
	StateDegraded
	StateWarning
	StateCritical
)

func (s State) String() string {
	switch s {
	case StateOptimal:
		return "optimal"
	case StateDegraded:
		return "degraded"
	case StateWarning:
		return "warning"
	case StateCritical:
		return "critical"
	default:
		return "optimal"
	}
}

// MarshalJSON encodes the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Monitor keeps a sliding window of samples, grades health from violation
// streaks, and steps the shared quality level up or down, at most once per
// cooldown.
type Monitor struct {
	mu  sync.Mutex
	now func() time.Time

	hist     *history
	window   time.Duration
	cooldown time.Duration
	level    *syncx.RWGuard[quality.Level]

	consecViolations int
	consecClean      int
	severe           bool
	lastAdjust       time.Time
}

// NewMonitor builds a monitor adjusting the shared level guard.
func NewMonitor(level *syncx.RWGuard[quality.Level]) *Monitor {
	return &Monitor{
		now:      time.Now,
		hist:     newHistory(DefaultCapacity),
		window:   DefaultWindow,
		cooldown: DefaultCooldown,
		level:    level,
	}
}

// Record inserts a sample, updates streaks, and may adjust quality.
func (m *Monitor) Record(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.At.IsZero() {
		s.At = m.now()
	}
	s.Violation = s.Target > 0 && s.Elapsed > s.Target
	m.hist.add(s, m.window)

	if s.Violation {
		m.consecViolations++
		m.consecClean = 0
	} else {
		m.consecClean++
		m.consecViolations = 0
	}
	m.severe = s.Target > 0 && float64(s.Elapsed) > SevereFactor*float64(s.Target)

	m.adjustLocked(s.At)
}

func (m *Monitor) adjustLocked(now time.Time) {
	if !m.lastAdjust.IsZero() && now.Sub(m.lastAdjust) < m.cooldown {
		return
	}

	cur := m.level.Get()
	switch {
	case m.consecViolations >= WarnAfter:
		if next := cur.StepDown(); next != cur {
			m.level.Set(next)
			m.lastAdjust = now
			slog.Info("quality stepped down",
				"from", cur.String(), "to", next.String(),
				"consecutive_violations", m.consecViolations)
		}
	case m.consecClean >= StepUpAfter && m.headroomLocked():
		if next := cur.StepUp(); next != cur {
			m.level.Set(next)
			m.lastAdjust = now
			slog.Info("quality stepped up", "from", cur.String(), "to", next.String())
		}
	}
}

// headroomLocked reports whether the newest clean samples averaged well
// under target.
func (m *Monitor) headroomLocked() bool {
	recent := m.hist.tail(StepUpAfter)
	if len(recent) < StepUpAfter {
		return false
	}
	var elapsed, target time.Duration
	for _, s := range recent {
		elapsed += s.Elapsed
		target += s.Target
	}
	if target <= 0 {
		return false
	}
	return float64(elapsed) < StepUpHeadroom*float64(target)
}

// State reports current health. Critical outranks warning outranks
// degraded.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Monitor) stateLocked() State {
	switch {
	case m.consecViolations >= CriticalAfter:
		return StateCritical
	case m.consecViolations >= WarnAfter:
		return StateWarning
	case m.severe:
		return StateDegraded
	default:
		return StateOptimal
	}
}

// Level returns the active quality level.
func (m *Monitor) Level() quality.Level {
	return m.level.Get()
}

// OpStats aggregates samples sharing an operation kind or quality level.
type OpStats struct {
	Count      int           `json:"count"`
	Mean       time.Duration `json:"mean"`
	Violations int           `json:"violations"`
}

// Report is a point-in-time statistics snapshot of the sample window.
type Report struct {
	Samples               int                `json:"samples"`
	Mean                  time.Duration      `json:"mean"`
	Median                time.Duration      `json:"median"`
	P95                   time.Duration      `json:"p95"`
	P99                   time.Duration      `json:"p99"`
	ViolationRate         float64            `json:"violation_rate"`
	ConsecutiveViolations int                `json:"consecutive_violations"`
	State                 State              `json:"state"`
	Level                 quality.Level      `json:"level"`
	ByOp                  map[string]OpStats `json:"by_op"`
	ByLevel               map[string]OpStats `json:"by_level"`
}

type opAccum struct {
	count      int
	violations int
	total      time.Duration
}

// Report computes window statistics. Used for tuning and telemetry, not
// for admission decisions.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	samples := m.hist.all()
	consec := m.consecViolations
	state := m.stateLocked()
	m.mu.Unlock()

	r := Report{
		Samples:               len(samples),
		ConsecutiveViolations: consec,
		State:                 state,
		Level:                 m.level.Get(),
		ByOp:                  make(map[string]OpStats),
		ByLevel:               make(map[string]OpStats),
	}
	if len(samples) == 0 {
		return r
	}

	times := make([]float64, len(samples))
	violations := 0
	byOp := make(map[string]*opAccum)
	byLevel := make(map[string]*opAccum)
	for i, s := range samples {
		times[i] = float64(s.Elapsed)
		if s.Violation {
			violations++
		}
		accumulate(byOp, s.Op, s)
		accumulate(byLevel, s.Level.String(), s)
	}
	sort.Float64s(times)

	r.Mean = time.Duration(stat.Mean(times, nil))
	r.Median = time.Duration(stat.Quantile(0.5, stat.Empirical, times, nil))
	r.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, times, nil))
	r.P99 = time.Duration(stat.Quantile(0.99, stat.Empirical, times, nil))
	r.ViolationRate = float64(violations) / float64(len(samples))
	for k, a := range byOp {
		r.ByOp[k] = a.stats()
	}
	for k, a := range byLevel {
		r.ByLevel[k] = a.stats()
	}
	return r
}

func accumulate(m map[string]*opAccum, key string, s Sample) {
	a := m[key]
	if a == nil {
		a = &opAccum{}
		m[key] = a
	}
	a.count++
	a.total += s.Elapsed
	if s.Violation {
		a.violations++
	}
}

func (a *opAccum) stats() OpStats {
	return OpStats{
		Count:      a.count,
		Mean:       a.total / time.Duration(a.count),
		Violations: a.violations,
	}
}
