// Package analysis scores screen frames into density grids, spatial
// distributions, and flagged regions.
package analysis

// Cell scoring constants
const (
	// Cells at or above these scores count as high/medium density.
	HighCellScore   = 0.7
	MediumCellScore = 0.4

	// Cells smaller than this many pixels on a side are skipped; they score 0.
	MinCellPixels = 8

	// Fixed sampling stride across cell pixels. Sampling starts at half the
	// stride so edges and centers are both represented.
	SampleStride = 8
)
