// Package perf tracks processing-time samples in a sliding window and
// drives automatic quality adjustment.
package perf

import "time"

const (
	// Sample buffer bounds, both enforced on insert.
	DefaultCapacity = 100
	DefaultWindow   = 10 * time.Second

	// Quality adjustments happen at most once per cooldown.
	DefaultCooldown = 2 * time.Second

	// WarnAfter consecutive violations raise WARNING and trigger a step
	// down; CriticalAfter raise CRITICAL.
	WarnAfter     = 3
	CriticalAfter = 5

	// StepUpAfter consecutive clean samples with average processing time
	// under StepUpHeadroom of target step quality back up.
	StepUpAfter    = 5
	StepUpHeadroom = 0.7

	// A single sample beyond SevereFactor of target marks the system
	// degraded even before a violation streak forms.
	SevereFactor = 1.5
)
