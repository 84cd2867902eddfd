// Package telemetry carries sampled pipeline observations to consumers:
// Prometheus metrics, the SQLite history store, and the monitor server's
// WebSocket broadcast. Decisions are published per analyzed frame;
// snapshots on a fixed cadence so sink I/O never tracks the frame rate.
package telemetry

import (
	"time"

	"github.com/screenveil/screenveil/internal/cache"
	"github.com/screenveil/screenveil/internal/perf"
	"github.com/screenveil/screenveil/internal/quality"
	"github.com/screenveil/screenveil/internal/resilience"
)

// Snapshot is one sampled view of pipeline health.
type Snapshot struct {
	ID     string                `json:"id"`
	At     time.Time             `json:"at"`
	Level  quality.Level         `json:"level"`
	Perf   perf.Report           `json:"perf"`
	Errors resilience.ErrorStats `json:"errors"`
	Cache  cache.Stats           `json:"cache"`
}

// Decision is the per-frame outcome record.
type Decision struct {
	ID         string        `json:"id"`
	At         time.Time     `json:"at"`
	FrameID    string        `json:"frame_id"`
	Action     string        `json:"action"`
	Warning    string        `json:"warning"`
	Density    float64       `json:"density"`
	Regions    int           `json:"regions"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Degraded   bool          `json:"degraded"`
}

// Sink consumes published telemetry. Implementations must not block the
// caller beyond queueing.
type Sink interface {
	PublishSnapshot(Snapshot)
	PublishDecision(Decision)
}

// Multi fans out to several sinks.
type Multi []Sink

func (m Multi) PublishSnapshot(s Snapshot) {
	for _, sink := range m {
		sink.PublishSnapshot(s)
	}
}

func (m Multi) PublishDecision(d Decision) {
	for _, sink := range m {
		sink.PublishDecision(d)
	}
}
