package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/screenveil/screenveil/internal/analysis"
	"github.com/screenveil/screenveil/internal/classify"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/frame"
	"github.com/screenveil/screenveil/internal/perf"
	"github.com/screenveil/screenveil/internal/quality"
	"github.com/screenveil/screenveil/internal/resilience"
	"github.com/screenveil/screenveil/internal/telemetry"
	"github.com/screenveil/screenveil/internal/trace"
)

var (
	// ErrSkipped reports a frame the scheduler declined to analyze.
	ErrSkipped = errors.New("frame skipped")
	// ErrSuperseded reports a frame cancelled by a newer admitted frame.
	ErrSuperseded = errors.New("frame superseded")
)

// Process runs one captured frame through the control loop. Frames the
// scheduler declines return ErrSkipped; frames cancelled by a newer
// arrival return ErrSuperseded. Every other path, including degraded
// ones, delivers a valid outcome.
func (e *Engine) Process(ctx context.Context, fr *frame.Frame, forced bool) (*FrameResult, error) {
	adm := e.sched.Admit(time.Now(), forced)
	if !adm.Process {
		telemetry.RecordFrameDropped(adm.Reason)
		return nil, fmt.Errorf("%w: %s", ErrSkipped, adm.Reason)
	}
	telemetry.RecordFrameAdmitted()

	ctx, span := trace.StartSpan(ctx, "process_frame")
	defer span.End()
	span.SetAttr("frame", fr.ID)
	span.SetAttr("seq", fr.Seq)
	span.SetAttr("level", adm.Level.String())

	log := trace.Logger(ctx)

	fp, err := fr.ComputeFingerprint()
	if err != nil {
		log.Debug("fingerprint failed", "error", err)
	}

	// Unchanged content is served from the outcome cache without burning
	// an analysis slot.
	if !forced && !e.sched.Changed(fp) {
		if out, ok := e.outcomes.Get(fp.Key()); ok {
			e.duplicates.Add(1)
			res := &FrameResult{
				Frame:     fr,
				Outcome:   out,
				Level:     adm.Level,
				FromCache: true,
			}
			e.last.Set(res)
			return res, nil
		}
	}

	if !e.sem.TryAcquire(1) {
		e.supersede()
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	defer e.sem.Release(1)

	st := e.settings.Get()
	budget := effectiveBudget(adm.Level, st)

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	e.setInflight(cancel)
	defer e.setInflight(nil)

	start := time.Now()
	res, degraded, err := e.analyze(runCtx, fr, fp, adm.Level, st)
	elapsed := time.Since(start)
	if err != nil {
		telemetry.RecordFrameDropped("superseded")
		log.Debug("frame superseded", "seq", fr.Seq)
		return nil, ErrSuperseded
	}

	e.monitor.Record(perf.Sample{
		At:      time.Now(),
		Elapsed: elapsed,
		Target:  budget,
		Op:      OpAnalyze,
		Level:   adm.Level,
	})
	telemetry.RecordAnalysis(adm.Level.String(), elapsed.Seconds(), elapsed > budget)

	out := e.decider.Decide(res, st, budget)
	if !fp.IsZero() {
		e.outcomes.Put(fp.Key(), out, e.ttl, outcomeSizeEstimate)
	}

	fres := &FrameResult{
		Frame:    fr,
		Outcome:  out,
		Analysis: res,
		Level:    adm.Level,
		Elapsed:  elapsed,
		Degraded: degraded,
	}

	e.processed.Add(1)
	if degraded {
		e.degraded.Add(1)
	}
	e.last.Set(fres)

	e.telemetrySink().PublishDecision(telemetry.Decision{
		ID:         uuid.NewString(),
		At:         time.Now(),
		FrameID:    fr.ID,
		Action:     out.Action.String(),
		Warning:    out.Warning.String(),
		Density:    res.Density,
		Regions:    res.RegionCount,
		Confidence: out.Confidence,
		Elapsed:    elapsed,
		Degraded:   degraded,
	})
	e.notify(fres)

	span.SetAttr("action", out.Action.String())
	span.SetAttr("elapsed_ms", elapsed.Milliseconds())
	return fres, nil
}

// analyze fans out the grid pass and both classifiers under one deadline
// and joins them into a Result. A deadline that expires before the grid
// pass can run yields the conservative result; cancellation by a newer
// frame returns an error.
func (e *Engine) analyze(ctx context.Context, fr *frame.Frame, fp frame.Fingerprint, level quality.Level, st config.Settings) (*analysis.Result, bool, error) {
	work := fr
	if ratio := level.Downscale(); ratio < 1 {
		work = fr.Downscale(ratio)
	}

	var (
		grid    *analysis.DensityGrid
		regions []analysis.Region
		faces   classify.FaceResult
		nsfw    classify.NSFWResult

		facesFellBack bool
		nsfwFellBack  bool
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		grid, regions = e.analyzer.Analyze(work, fp, level.GridSize(), st)
		return nil
	})

	g.Go(func() error {
		faces, facesFellBack = resilience.Execute(gctx, e.coord, OpDetectFaces,
			func(ctx context.Context) (classify.FaceResult, error) {
				t := time.Now()
				res, err := e.faces.DetectFaces(ctx, work, st)
				telemetry.RecordClassifierCall(OpDetectFaces, callStatus(err), time.Since(t).Seconds())
				return res, err
			},
			func() classify.FaceResult { return classify.FaceResult{} })
		if facesFellBack {
			telemetry.RecordFallback(OpDetectFaces)
		}
		return nil
	})

	g.Go(func() error {
		nsfw, nsfwFellBack = resilience.Execute(gctx, e.coord, OpDetectNSFW,
			func(ctx context.Context) (classify.NSFWResult, error) {
				t := time.Now()
				res, err := e.nsfw.DetectNSFW(ctx, work)
				telemetry.RecordClassifierCall(OpDetectNSFW, callStatus(err), time.Since(t).Seconds())
				return res, err
			},
			func() classify.NSFWResult { return classify.NSFWResult{} })
		if nsfwFellBack {
			telemetry.RecordFallback(OpDetectNSFW)
		}
		return nil
	})

	err := g.Wait()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		merged := analysis.MergeOverlapping(append(regions, faces.Boxes...))
		extra := 0.0
		if nsfw.Positive {
			extra = nsfw.Confidence
		}
		res := analysis.NewResult(grid, merged, extra, elapsed)
		return res, facesFellBack || nsfwFellBack, nil

	case errors.Is(err, context.DeadlineExceeded):
		telemetry.RecordFallback(OpAnalyze)
		return conservativeResult(elapsed), true, nil

	default:
		return nil, false, err
	}
}

// conservativeResult stands in when no analysis evidence exists at all.
func conservativeResult(elapsed time.Duration) *analysis.Result {
	grid := analysis.NewDensityGrid(1)
	grid.Set(0, 0, ConservativeDensity)
	grid.Finalize()
	return analysis.NewResult(grid, nil, ConservativeDensity, elapsed)
}

// effectiveBudget caps the level's budget with the user's processing-time
// ceiling when one is set.
func effectiveBudget(level quality.Level, st config.Settings) time.Duration {
	budget := level.Budget()
	if st.MaxProcessingTimeMs > 0 {
		if userCap := time.Duration(st.MaxProcessingTimeMs) * time.Millisecond; userCap < budget {
			budget = userCap
		}
	}
	return budget
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// supersede cancels the in-flight frame, if any.
func (e *Engine) supersede() {
	e.mu.Lock()
	cancel := e.cancelInflight
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) setInflight(cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancelInflight = cancel
	e.mu.Unlock()
}
