package telemetry

import "time"

// Batching defaults
const (
	DefaultBatchSize  = 50
	DefaultFlushDelay = 2 * time.Second
)

// Snapshot cadence and history retention defaults
const (
	DefaultSnapshotInterval = 2 * time.Second
	DefaultRetention        = 24 * time.Hour
)
