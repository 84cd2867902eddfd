package analysis

import "sort"

// Region is a rectangular image area with a confidence score. Bounds follow
// the image convention: Left/Top inclusive, Right/Bottom exclusive. Regions
// are immutable; merging produces new values.
type Region struct {
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Right      int     `json:"right"`
	Bottom     int     `json:"bottom"`
	Confidence float64 `json:"confidence"`
}

// Width returns the region width in pixels.
func (r Region) Width() int { return r.Right - r.Left }

// Height returns the region height in pixels.
func (r Region) Height() int { return r.Bottom - r.Top }

// Area returns the covered pixel count.
func (r Region) Area() int { return r.Width() * r.Height() }

// Touches reports whether two regions overlap or share an edge.
func (r Region) Touches(o Region) bool {
	return r.Left <= o.Right && o.Left <= r.Right &&
		r.Top <= o.Bottom && o.Top <= r.Bottom
}

// union covers both rectangles and keeps the higher confidence.
func union(a, b Region) Region {
	return Region{
		Left:       min(a.Left, b.Left),
		Top:        min(a.Top, b.Top),
		Right:      max(a.Right, b.Right),
		Bottom:     max(a.Bottom, b.Bottom),
		Confidence: max(a.Confidence, b.Confidence),
	}
}

// MergeOverlapping collapses touching regions into their unions. The result
// is sorted by position and stable: merging a merged list again changes
// nothing.
func MergeOverlapping(regions []Region) []Region {
	if len(regions) <= 1 {
		return append([]Region(nil), regions...)
	}

	work := append([]Region(nil), regions...)
	for {
		merged := false
		out := make([]Region, 0, len(work))

		for _, r := range work {
			joined := false
			for i := range out {
				if out[i].Touches(r) {
					out[i] = union(out[i], r)
					joined = true
					merged = true
					break
				}
			}
			if !joined {
				out = append(out, r)
			}
		}

		work = out
		if !merged {
			break
		}
	}

	sort.Slice(work, func(i, j int) bool {
		if work[i].Top != work[j].Top {
			return work[i].Top < work[j].Top
		}
		if work[i].Left != work[j].Left {
			return work[i].Left < work[j].Left
		}
		return work[i].Confidence > work[j].Confidence
	})
	return work
}
