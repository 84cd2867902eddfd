package perf

import (
	"testing"
	"time"

	"github.com/screenveil/screenveil/internal/quality"
	"github.com/screenveil/screenveil/internal/syncx"
)

func sampleAt(at time.Time, elapsed, target time.Duration) Sample {
	return Sample{At: at, Elapsed: elapsed, Target: target, Op: "analyze", Level: quality.Balanced}
}

func TestHistoryRingBounds(t *testing.T) {
	h := newHistory(3)
	base := time.Unix(100, 0)
	for i := 0; i < 5; i++ {
		h.add(Sample{At: base.Add(time.Duration(i) * time.Second), Elapsed: time.Duration(i)}, time.Minute)
	}

	if h.len() != 3 {
		t.Fatalf("len = %d, want 3", h.len())
	}
	all := h.all()
	for i, want := range []time.Duration{2, 3, 4} {
		if all[i].Elapsed != want {
			t.Errorf("all()[%d].Elapsed = %v, want %v", i, all[i].Elapsed, want)
		}
	}
}

func TestHistoryAgesOut(t *testing.T) {
	h := newHistory(10)
	base := time.Unix(100, 0)
	for i := 0; i <= 5; i++ {
		h.add(Sample{At: base.Add(time.Duration(i) * time.Second)}, 10*time.Second)
	}
	h.add(Sample{At: base.Add(12 * time.Second)}, 10*time.Second)

	if h.len() != 5 {
		t.Fatalf("len after aging = %d, want 5", h.len())
	}
	if oldest := h.all()[0]; oldest.At != base.Add(2*time.Second) {
		t.Errorf("oldest sample at %v, want t+2s", oldest.At)
	}
}

func TestHistoryTail(t *testing.T) {
	h := newHistory(5)
	base := time.Unix(100, 0)
	for i := 0; i < 4; i++ {
		h.add(Sample{At: base.Add(time.Duration(i) * time.Second), Elapsed: time.Duration(i)}, time.Minute)
	}

	tail := h.tail(2)
	if len(tail) != 2 || tail[0].Elapsed != 2 || tail[1].Elapsed != 3 {
		t.Errorf("tail(2) = %+v, want elapsed 2 then 3", tail)
	}
	if got := h.tail(10); len(got) != 4 {
		t.Errorf("tail(10) returned %d samples, want all 4", len(got))
	}
}

func TestRecordDerivesViolation(t *testing.T) {
	m := NewMonitor(syncx.NewGuard(quality.Balanced))
	base := time.Unix(100, 0)

	m.Record(sampleAt(base, 60*time.Millisecond, 50*time.Millisecond))
	m.Record(sampleAt(base.Add(time.Second), 40*time.Millisecond, 50*time.Millisecond))

	all := m.hist.all()
	if !all[0].Violation || all[1].Violation {
		t.Errorf("violations = %v/%v, want true/false", all[0].Violation, all[1].Violation)
	}
}

func TestStateLadder(t *testing.T) {
	m := NewMonitor(syncx.NewGuard(quality.Balanced))
	base := time.Unix(100, 0)

	if got := m.State(); got != StateOptimal {
		t.Fatalf("initial state = %v, want optimal", got)
	}

	// One sample beyond 1.5x target degrades without a streak.
	m.Record(sampleAt(base, 100*time.Millisecond, 50*time.Millisecond))
	if got := m.State(); got != StateDegraded {
		t.Fatalf("state after severe sample = %v, want degraded", got)
	}

	m.Record(sampleAt(base.Add(10*time.Millisecond), 60*time.Millisecond, 50*time.Millisecond))
	m.Record(sampleAt(base.Add(20*time.Millisecond), 60*time.Millisecond, 50*time.Millisecond))
	if got := m.State(); got != StateWarning {
		t.Fatalf("state after 3 consecutive violations = %v, want warning", got)
	}

	m.Record(sampleAt(base.Add(30*time.Millisecond), 60*time.Millisecond, 50*time.Millisecond))
	m.Record(sampleAt(base.Add(40*time.Millisecond), 60*time.Millisecond, 50*time.Millisecond))
	if got := m.State(); got != StateCritical {
		t.Fatalf("state after 5 consecutive violations = %v, want critical", got)
	}

	m.Record(sampleAt(base.Add(50*time.Millisecond), 10*time.Millisecond, 50*time.Millisecond))
	if got := m.State(); got != StateOptimal {
		t.Errorf("state after clean sample = %v, want optimal", got)
	}
}

func TestAutoStepDownHonorsCooldown(t *testing.T) {
	guard := syncx.NewGuard(quality.High)
	m := NewMonitor(guard)
	base := time.Unix(100, 0)

	for i := 0; i < 3; i++ {
		m.Record(sampleAt(base.Add(time.Duration(i)*10*time.Millisecond), 80*time.Millisecond, 50*time.Millisecond))
	}
	if got := guard.Get(); got != quality.Balanced {
		t.Fatalf("level after 3 violations = %v, want one step down to balanced", got)
	}

	// A fourth violation right after must not step again inside the cooldown.
	m.Record(sampleAt(base.Add(30*time.Millisecond), 80*time.Millisecond, 50*time.Millisecond))
	if got := guard.Get(); got != quality.Balanced {
		t.Fatalf("level after immediate 4th violation = %v, want still balanced", got)
	}

	// Once the cooldown passes, sustained violations step down again.
	m.Record(sampleAt(base.Add(2500*time.Millisecond), 80*time.Millisecond, 50*time.Millisecond))
	if got := guard.Get(); got != quality.Fast {
		t.Errorf("level after cooldown = %v, want fast", got)
	}
}

func TestAutoStepUp(t *testing.T) {
	guard := syncx.NewGuard(quality.Fast)
	m := NewMonitor(guard)
	base := time.Unix(100, 0)

	for i := 0; i < 5; i++ {
		m.Record(sampleAt(base.Add(time.Duration(i)*10*time.Millisecond), 20*time.Millisecond, 100*time.Millisecond))
	}
	if got := guard.Get(); got != quality.Balanced {
		t.Fatalf("level after 5 clean samples with headroom = %v, want balanced", got)
	}

	// Sixth clean sample inside the cooldown leaves the level alone.
	m.Record(sampleAt(base.Add(50*time.Millisecond), 20*time.Millisecond, 100*time.Millisecond))
	if got := guard.Get(); got != quality.Balanced {
		t.Errorf("level inside cooldown = %v, want balanced", got)
	}
}

func TestNoStepUpWithoutHeadroom(t *testing.T) {
	guard := syncx.NewGuard(quality.Fast)
	m := NewMonitor(guard)
	base := time.Unix(100, 0)

	// Clean but close to target: no headroom, no step.
	for i := 0; i < 6; i++ {
		m.Record(sampleAt(base.Add(time.Duration(i)*10*time.Millisecond), 80*time.Millisecond, 100*time.Millisecond))
	}
	if got := guard.Get(); got != quality.Fast {
		t.Errorf("level = %v, want unchanged fast", got)
	}
}

func TestReportStats(t *testing.T) {
	m := NewMonitor(syncx.NewGuard(quality.Balanced))
	base := time.Unix(100, 0)

	ops := []struct {
		op      string
		elapsed time.Duration
	}{
		{"grid", 10 * time.Millisecond},
		{"grid", 20 * time.Millisecond},
		{"faces", 30 * time.Millisecond},
		{"nsfw", 40 * time.Millisecond},
	}
	for i, o := range ops {
		m.Record(Sample{
			At:      base.Add(time.Duration(i) * 100 * time.Millisecond),
			Elapsed: o.elapsed,
			Target:  25 * time.Millisecond,
			Op:      o.op,
			Level:   quality.Balanced,
		})
	}

	r := m.Report()
	if r.Samples != 4 {
		t.Fatalf("Samples = %d, want 4", r.Samples)
	}
	if r.Mean != 25*time.Millisecond {
		t.Errorf("Mean = %v, want 25ms", r.Mean)
	}
	if r.Median != 20*time.Millisecond {
		t.Errorf("Median = %v, want 20ms", r.Median)
	}
	if r.P95 != 40*time.Millisecond || r.P99 != 40*time.Millisecond {
		t.Errorf("P95/P99 = %v/%v, want 40ms both", r.P95, r.P99)
	}
	if r.ViolationRate != 0.5 {
		t.Errorf("ViolationRate = %v, want 0.5", r.ViolationRate)
	}

	grid := r.ByOp["grid"]
	if grid.Count != 2 || grid.Mean != 15*time.Millisecond || grid.Violations != 0 {
		t.Errorf("ByOp[grid] = %+v, want count 2 mean 15ms violations 0", grid)
	}
	if lvl := r.ByLevel[quality.Balanced.String()]; lvl.Count != 4 {
		t.Errorf("ByLevel[balanced].Count = %d, want 4", lvl.Count)
	}
}

func TestReportEmpty(t *testing.T) {
	m := NewMonitor(syncx.NewGuard(quality.Balanced))
	r := m.Report()

	if r.Samples != 0 || r.ViolationRate != 0 {
		t.Errorf("empty report = %+v, want zero samples and rate", r)
	}
	if r.ByOp == nil || r.ByLevel == nil {
		t.Error("breakdown maps should be allocated")
	}
	if r.State != StateOptimal {
		t.Errorf("State = %v, want optimal", r.State)
	}
}
