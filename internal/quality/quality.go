// Package quality defines the named trade-off points between analysis latency
// and resolution. The scheduler and performance monitor move the active level;
// the analyzer and pipeline read it.
package quality

import (
	"encoding/json"
	"time"
)

// Level orders the quality tiers from cheapest to most thorough.
type Level uint32

const (
	UltraFast Level = iota
	Fast
	Balanced
	High
)

// String returns a human-readable level name.
func (l Level) String() string {
	switch l {
	case UltraFast:
		return "ultra_fast"
	case Fast:
		return "fast"
	case Balanced:
		return "balanced"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Per-level tuning tables. Budgets cap per-frame processing time; downscale
// ratios shrink the frame before sampling; grid sizes set analysis resolution;
// skip factors control Kth-frame admission during rapid scrolling.
var (
	budgets = [...]time.Duration{
		UltraFast: 50 * time.Millisecond,
		Fast:      100 * time.Millisecond,
		Balanced:  200 * time.Millisecond,
		High:      500 * time.Millisecond,
	}

	downscales = [...]float64{
		UltraFast: 0.25,
		Fast:      0.5,
		Balanced:  0.75,
		High:      1.0,
	}

	gridSizes = [...]int{
		UltraFast: 2,
		Fast:      3,
		Balanced:  4,
		High:      5,
	}

	skipFactors = [...]int{
		UltraFast: 1,
		Fast:      2,
		Balanced:  3,
		High:      4,
	}
)

// Budget returns the per-frame processing-time budget at this level.
func (l Level) Budget() time.Duration {
	if int(l) >= len(budgets) {
		return budgets[UltraFast]
	}
	return budgets[l]
}

// Downscale returns the ratio applied to frame dimensions before analysis.
func (l Level) Downscale() float64 {
	if int(l) >= len(downscales) {
		return downscales[UltraFast]
	}
	return downscales[l]
}

// GridSize returns the analysis grid dimension at this level.
func (l Level) GridSize() int {
	if int(l) >= len(gridSizes) {
		return gridSizes[UltraFast]
	}
	return gridSizes[l]
}

// SkipFactor returns K for every-Kth-frame admission during rapid scrolling.
func (l Level) SkipFactor() int {
	if int(l) >= len(skipFactors) {
		return skipFactors[UltraFast]
	}
	return skipFactors[l]
}

// StepDown returns the next cheaper level, flooring at UltraFast.
func (l Level) StepDown() Level {
	if l == UltraFast {
		return UltraFast
	}
	return l - 1
}

// StepUp returns the next more thorough level, capping at High.
func (l Level) StepUp() Level {
	if l >= High {
		return High
	}
	return l + 1
}

// Parse maps a config string to a Level, defaulting to Balanced.
func Parse(s string) Level {
	switch s {
	case "ultra_fast":
		return UltraFast
	case "fast":
		return Fast
	case "balanced":
		return Balanced
	case "high":
		return High
	default:
		return Balanced
	}
}
