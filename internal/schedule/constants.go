// Package schedule decides which captured frames are worth analyzing.
package schedule

import "time"

const (
	// MinInterval caps throughput; frames arriving faster are dropped.
	MinInterval = 33 * time.Millisecond

	// RapidThreshold marks rapid scrolling; below it only every Kth frame
	// passes, with K taken from the active quality level.
	RapidThreshold = 100 * time.Millisecond
)

// Admission reasons, reported in decisions and telemetry.
const (
	ReasonFirstFrame  = "first_frame"
	ReasonForced      = "forced"
	ReasonSteady      = "steady"
	ReasonMinInterval = "min_interval"
	ReasonRapidSkip   = "rapid_scroll_skip"
	ReasonRapidSample = "rapid_scroll_sample"
)
