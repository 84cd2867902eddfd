package decision

// Outcome reasons, reported in logs and telemetry.
const (
	ReasonWarningsDisabled = "warnings_disabled"
	ReasonRegionGraduated  = "region_graduated"
	ReasonCriticalDensity  = "critical_density"
	ReasonHighDensity      = "high_density"
	ReasonUserThreshold    = "user_threshold"
	ReasonDistributed      = "distributed_content"
	ReasonConcentrated     = "concentrated_content"
	ReasonSelective        = "selective_regions"
	ReasonClean            = "clean"
)

// Confidence blend weights. Density carries the most signal; region count
// contributes up to its cap; an even grid and spare latency round it out.
const (
	weightDensity       = 0.4
	weightRegions       = 0.3
	weightConsistency   = 0.2
	weightLatency       = 0.1
	confidenceRegionCap = 10
)
