package schedule

import (
	"sync"
	"time"

	"github.com/screenveil/screenveil/internal/frame"
	"github.com/screenveil/screenveil/internal/quality"
	"github.com/screenveil/screenveil/internal/syncx"
)

// Decision is the admission verdict for one frame.
type Decision struct {
	Process bool
	Level   quality.Level
	Reason  string
}

// Scheduler rate-limits frame analysis. It tracks inter-frame cadence to
// detect rapid scrolling and samples every Kth frame while it lasts, K
// widening as quality rises. Admission is pure bookkeeping under one mutex;
// it never blocks.
type Scheduler struct {
	mu    sync.Mutex
	level *syncx.RWGuard[quality.Level]

	minInterval    time.Duration
	rapidThreshold time.Duration
	skipDistance   int

	seen       bool
	lastFrame  time.Time
	rapidCount int
	lastFP     frame.Fingerprint
}

// New builds a scheduler reading the active quality level from level.
// skipDistance is the perceptual-hash distance at or under which a frame
// counts as a duplicate of the last analyzed one.
func New(level *syncx.RWGuard[quality.Level], skipDistance int) *Scheduler {
	return &Scheduler{
		level:          level,
		minInterval:    MinInterval,
		rapidThreshold: RapidThreshold,
		skipDistance:   skipDistance,
	}
}

// Admit decides whether the frame arriving at now should be analyzed. The
// first frame and forced frames always pass. Frames under the minimum
// interval are dropped; under the rapid-scroll threshold only every Kth
// frame passes. Always records now as the last arrival.
func (s *Scheduler) Admit(now time.Time, forced bool) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := s.level.Get()

	if !s.seen || forced {
		reason := ReasonFirstFrame
		if s.seen {
			reason = ReasonForced
		}
		s.seen = true
		s.lastFrame = now
		s.rapidCount = 0
		return Decision{Process: true, Level: level, Reason: reason}
	}

	interval := now.Sub(s.lastFrame)
	s.lastFrame = now

	if interval < s.minInterval {
		return Decision{Level: level, Reason: ReasonMinInterval}
	}

	if interval < s.rapidThreshold {
		s.rapidCount++
		if s.rapidCount%level.SkipFactor() != 0 {
			return Decision{Level: level, Reason: ReasonRapidSkip}
		}
		return Decision{Process: true, Level: level, Reason: ReasonRapidSample}
	}

	s.rapidCount = 0
	return Decision{Process: true, Level: level, Reason: ReasonSteady}
}

// Changed reports whether fp differs enough from the last analyzed frame to
// be worth a fresh pass, and notes it when it does. Unreadable fingerprints
// pass through so analysis still runs.
func (s *Scheduler) Changed(fp frame.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fp.IsZero() {
		return true
	}
	if s.lastFP.IsZero() {
		s.lastFP = fp
		return true
	}

	dist, err := s.lastFP.Distance(fp)
	if err != nil {
		s.lastFP = fp
		return true
	}
	if dist <= s.skipDistance {
		return false
	}
	s.lastFP = fp
	return true
}
