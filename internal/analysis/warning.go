package analysis

// WarningLevel grades how severe flagged content on a frame is. Levels are
// ordered so callers can compare them directly.
type WarningLevel uint32

const (
	WarnNone WarningLevel = iota
	WarnMinimal
	WarnLow
	WarnMedium
	WarnHigh
	WarnCritical
)

// Density and critical-region anchors for the warning ladder. These grade
// severity for the UI and reflection scaling; the escalation rules carry
// their own calibratable thresholds.
const (
	criticalWarnDensity = 0.8
	highWarnDensity     = 0.6
	mediumWarnDensity   = 0.4
	lowWarnDensity      = 0.25
	minimalWarnDensity  = 0.1

	criticalWarnRegions = 10
	highWarnRegions     = 8
	mediumWarnRegions   = 6
	lowWarnRegions      = 3
)

func (w WarningLevel) String() string {
	switch w {
	case WarnNone:
		return "none"
	case WarnMinimal:
		return "minimal"
	case WarnLow:
		return "low"
	case WarnMedium:
		return "medium"
	case WarnHigh:
		return "high"
	case WarnCritical:
		return "critical"
	default:
		return "none"
	}
}

// MarshalJSON encodes the level as its string name.
func (w WarningLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.String() + `"`), nil
}

// AtLeast reports whether w is as severe as o.
func (w WarningLevel) AtLeast(o WarningLevel) bool {
	return w >= o
}

// ComputeWarningLevel grades density and critical-region count on the
// six-tier ladder. For fixed region counts the level never drops as density
// rises.
func ComputeWarningLevel(density float64, criticalRegions int) WarningLevel {
	switch {
	case density >= criticalWarnDensity || criticalRegions >= criticalWarnRegions:
		return WarnCritical
	case density >= highWarnDensity || criticalRegions >= highWarnRegions:
		return WarnHigh
	case density >= mediumWarnDensity || criticalRegions >= mediumWarnRegions:
		return WarnMedium
	case density >= lowWarnDensity || criticalRegions >= lowWarnRegions:
		return WarnLow
	case density > minimalWarnDensity || criticalRegions >= 1:
		return WarnMinimal
	default:
		return WarnNone
	}
}
