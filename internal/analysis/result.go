package analysis

import "time"

// Result is the per-frame analysis product the decision engine consumes.
// Built once per analyzed frame and read-only afterwards.
type Result struct {
	Density         float64
	Spatial         SpatialDistribution
	Grid            *DensityGrid
	CriticalRegions []Region
	RegionCount     int
	MaxConfidence   float64
	ProcessingTime  time.Duration
	Warning         WarningLevel
}

// NewResult assembles a Result from a finalized grid and its merged
// high-confidence regions. extraDensity folds in evidence gathered outside
// the grid pass, classifier confidence mostly; density is the stronger of
// the two signals, clamped to [0,1].
func NewResult(grid *DensityGrid, regions []Region, extraDensity float64, elapsed time.Duration) *Result {
	density := max(grid.Average, extraDensity)
	if density < 0 {
		density = 0
	} else if density > 1 {
		density = 1
	}

	maxConf := 0.0
	for _, r := range regions {
		if r.Confidence > maxConf {
			maxConf = r.Confidence
		}
	}

	return &Result{
		Density:         density,
		Spatial:         Summarize(grid),
		Grid:            grid,
		CriticalRegions: regions,
		RegionCount:     len(regions),
		MaxConfidence:   maxConf,
		ProcessingTime:  elapsed,
		Warning:         ComputeWarningLevel(density, len(regions)),
	}
}
