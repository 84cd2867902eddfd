// Package pipeline owns the frame-analysis control loop: admission, the
// single-in-flight gate, classifier fan-out, decision, and the perf and
// telemetry feedback paths.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/screenveil/screenveil/internal/analysis"
	"github.com/screenveil/screenveil/internal/cache"
	"github.com/screenveil/screenveil/internal/classify"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/decision"
	apperrors "github.com/screenveil/screenveil/internal/errors"
	"github.com/screenveil/screenveil/internal/frame"
	"github.com/screenveil/screenveil/internal/perf"
	"github.com/screenveil/screenveil/internal/quality"
	"github.com/screenveil/screenveil/internal/resilience"
	"github.com/screenveil/screenveil/internal/schedule"
	"github.com/screenveil/screenveil/internal/syncx"
	"github.com/screenveil/screenveil/internal/telemetry"
)

// FrameResult is what one completed frame produces.
type FrameResult struct {
	Frame    *frame.Frame
	Outcome  decision.Outcome
	Analysis *analysis.Result
	Level    quality.Level
	Elapsed  time.Duration

	// FromCache marks an unchanged frame served from the outcome cache.
	FromCache bool
	// Degraded marks results built with fallback evidence.
	Degraded bool
}

// Consumer receives completed frame results. Consumers run on the
// processing goroutine and must not block.
type Consumer func(*FrameResult)

// Engine coordinates the per-frame control loop.
type Engine struct {
	cfg *config.Config

	level    *syncx.RWGuard[quality.Level]
	settings *syncx.RWGuard[config.Settings]

	sched    *schedule.Scheduler
	analyzer *analysis.Analyzer
	decider  *decision.Engine
	monitor  *perf.Monitor
	coord    *resilience.Coordinator
	faces    classify.FaceDetector
	nsfw     classify.NSFWDetector
	prober   *classify.Prober

	grids    *cache.Store[analysis.Cached]
	outcomes *cache.Store[decision.Outcome]
	ttl      time.Duration

	sink telemetry.Sink

	// Single analysis in flight; a newer admitted frame cancels the
	// older one through cancelInflight.
	sem *semaphore.Weighted

	mu             sync.Mutex
	cancelInflight context.CancelFunc
	consumers      []Consumer

	last *syncx.RWGuard[*FrameResult]

	processed  atomic.Uint64
	duplicates atomic.Uint64
	degraded   atomic.Uint64

	stopCh chan struct{}
}

// New wires the control loop from config. th carries the escalation
// calibration; sink receives decisions and snapshots (nil for none).
func New(cfg *config.Config, th config.Thresholds, sink telemetry.Sink) *Engine {
	if sink == nil {
		sink = telemetry.Multi{}
	}

	level := syncx.NewGuard(quality.Parse(cfg.BaseQuality))
	ttl := time.Duration(cfg.CacheTTLMs) * time.Millisecond

	grids := cache.New[analysis.Cached](cfg.CacheBudgetBytes)
	outcomes := cache.New[decision.Outcome](cfg.CacheBudgetBytes / 4)

	e := &Engine{
		cfg:      cfg,
		level:    level,
		settings: syncx.NewGuard(cfg.Settings),
		sched:    schedule.New(level, cfg.HashSkipDistance),
		analyzer: analysis.NewAnalyzer(grids, ttl),
		decider:  decision.NewEngine(th),
		monitor:  perf.NewMonitor(level),
		coord:    resilience.NewCoordinator(resilience.FastConfig(), resilience.ClassifierRetryConfig()),
		faces:    classify.NewEmbedded(),
		nsfw:     classify.NewEmbedded(),
		prober:   classify.NewProber(cfg.ClassifierTargets),
		grids:    grids,
		outcomes: outcomes,
		ttl:      ttl,
		sink:     sink,
		sem:      semaphore.NewWeighted(1),
		last:     syncx.NewGuard[*FrameResult](nil),
		stopCh:   make(chan struct{}),
	}

	e.registerStrategies()
	return e
}

// registerStrategies binds recovery actions to the error kinds that have a
// live target in this process. Timeouts shed quality, memory pressure
// drains the caches, network loss re-probes the remote classifiers.
func (e *Engine) registerStrategies() {
	e.coord.OnKind(apperrors.ProcessingTimeout, func(ctx context.Context, kind apperrors.Kind) {
		e.level.Update(func(l *quality.Level) { *l = l.StepDown() })
		slog.Info("quality reduced after timeout", "level", e.level.Get())
	})
	e.coord.OnKind(apperrors.InsufficientMemory, func(ctx context.Context, kind apperrors.Kind) {
		n := e.grids.Respond(cache.PressureHigh) + e.outcomes.Respond(cache.PressureHigh)
		slog.Warn("caches drained under memory pressure", "evicted", n)
	})
	e.coord.OnKind(apperrors.NetworkUnavailable, func(ctx context.Context, kind apperrors.Kind) {
		go e.prober.Check(context.WithoutCancel(ctx))
	})
}

// SetDetectors replaces the classifier collaborators. Call before Start.
func (e *Engine) SetDetectors(faces classify.FaceDetector, nsfw classify.NSFWDetector) {
	if faces != nil {
		e.faces = faces
	}
	if nsfw != nil {
		e.nsfw = nsfw
	}
}

// OnDecision registers a consumer for completed frames.
func (e *Engine) OnDecision(fn Consumer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumers = append(e.consumers, fn)
}

// AddSink fans telemetry out to an additional sink.
func (e *Engine) AddSink(s telemetry.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = telemetry.Multi{e.sink, s}
}

func (e *Engine) telemetrySink() telemetry.Sink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

// Start launches the background loops: cache janitors, the telemetry
// snapshot cadence, and classifier health probing.
func (e *Engine) Start(ctx context.Context) {
	go e.grids.Janitor(ctx, JanitorInterval)
	go e.outcomes.Janitor(ctx, JanitorInterval)
	go e.snapshotLoop(ctx)
	go e.prober.Run(ctx)
}

// Stop halts the background loops.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.prober.Close()
}

func (e *Engine) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(telemetry.DefaultSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.publishSnapshot()
		}
	}
}

func (e *Engine) publishSnapshot() {
	e.telemetrySink().PublishSnapshot(telemetry.Snapshot{
		ID:     uuid.NewString(),
		At:     time.Now(),
		Level:  e.level.Get(),
		Perf:   e.monitor.Report(),
		Errors: e.coord.Stats(),
		Cache:  e.grids.Stats(),
	})
}

// Level returns the active quality level.
func (e *Engine) Level() quality.Level {
	return e.level.Get()
}

// Settings returns the active detection settings.
func (e *Engine) Settings() config.Settings {
	return e.settings.Get()
}

// UpdateSettings validates and swaps the detection settings.
func (e *Engine) UpdateSettings(st config.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	e.settings.Set(st)
	slog.Info("settings updated",
		"density_threshold", st.DensityThreshold,
		"full_screen", st.FullScreenWarningEnabled,
		"ultra_fast", st.UltraFastModeEnabled)
	return nil
}

// Pressure applies a host memory-pressure signal to both caches and
// returns the number of entries evicted.
func (e *Engine) Pressure(p cache.PressureLevel) int {
	n := e.grids.Respond(p) + e.outcomes.Respond(p)
	slog.Info("memory pressure applied", "level", p, "evicted", n)
	return n
}

// Report returns the performance report.
func (e *Engine) Report() perf.Report {
	return e.monitor.Report()
}

// ErrorStats returns the recovery coordinator's windowed stats.
func (e *Engine) ErrorStats() resilience.ErrorStats {
	return e.coord.Stats()
}

// Last returns the most recent completed frame result, nil before the
// first frame.
func (e *Engine) Last() *FrameResult {
	return e.last.Get()
}

// Status is the live state summary served by the monitor API.
type Status struct {
	Level       quality.Level      `json:"level"`
	PerfState   perf.State         `json:"perf_state"`
	Health      resilience.Health  `json:"health"`
	Processed   uint64             `json:"frames_processed"`
	Duplicates  uint64             `json:"frames_duplicate"`
	Degraded    uint64             `json:"frames_degraded"`
	Cache       cache.Stats        `json:"cache"`
	Outcomes    cache.Stats        `json:"outcome_cache"`
	Classifiers map[string]bool    `json:"classifiers,omitempty"`
	Settings    config.Settings    `json:"settings"`
	Last        *decision.Outcome  `json:"last_outcome,omitempty"`
}

// Status assembles the live state summary.
func (e *Engine) Status() Status {
	s := Status{
		Level:       e.level.Get(),
		PerfState:   e.monitor.State(),
		Health:      e.coord.Stats().Health,
		Processed:   e.processed.Load(),
		Duplicates:  e.duplicates.Load(),
		Degraded:    e.degraded.Load(),
		Cache:       e.grids.Stats(),
		Outcomes:    e.outcomes.Stats(),
		Classifiers: e.prober.Status(),
		Settings:    e.settings.Get(),
	}
	if last := e.last.Get(); last != nil {
		out := last.Outcome
		s.Last = &out
	}
	return s
}

func (e *Engine) notify(res *FrameResult) {
	e.mu.Lock()
	consumers := e.consumers
	e.mu.Unlock()

	for _, fn := range consumers {
		fn(res)
	}
}
