package classify

import "time"

// Embedded detector configuration
const (
	// Grid resolution for face box candidates
	FaceGridSize = 4

	// Skin ratio above which a grid cell becomes a face candidate
	FaceCellThreshold = 0.45

	// Gender confidence reported per box; the heuristic cannot infer
	// gender, so it reports an uninformative prior
	GenderUnknown = 0.5

	// NSFW score above which a frame is flagged positive
	NSFWPositiveThreshold = 0.5

	// Blend weights for the NSFW score (whole frame vs center crop)
	NSFWFullWeight   = 0.6
	NSFWCenterWeight = 0.4
)

// Remote target health probing
const (
	DefaultProbeInterval = 5 * time.Second
	ProbeTimeout         = 2 * time.Second
)
