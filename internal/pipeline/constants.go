package pipeline

import "time"

// Operation keys. Breakers and perf samples are keyed by these, classifier
// keys additionally suffixed with the classified error kind.
const (
	OpAnalyze     = "analyze"
	OpDetectFaces = "detect_faces"
	OpDetectNSFW  = "detect_nsfw"
)

// ConservativeDensity is the synthetic density applied when a frame's
// analysis cannot complete inside its budget. False negatives cost more
// than false positives here, so an unanalyzable frame is treated as worth
// a full-screen blur, one step short of the critical cutoff.
const ConservativeDensity = 0.7

// Cache maintenance cadence
const (
	JanitorInterval = 10 * time.Second

	// outcomeSizeEstimate approximates one cached Outcome for the byte
	// budget; region slices are small at realistic grid sizes.
	outcomeSizeEstimate = 512
)
