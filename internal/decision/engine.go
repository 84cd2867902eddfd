package decision

import (
	"time"

	"github.com/screenveil/screenveil/internal/analysis"
	"github.com/screenveil/screenveil/internal/config"
)

// Outcome is the verdict delivered to the enforcement layer for one frame.
// BlurRegions is set only for selective blur; full-screen actions cover
// everything by definition.
type Outcome struct {
	Action               Action                `json:"action"`
	Warning              analysis.WarningLevel `json:"warning_level"`
	BlurRegions          []analysis.Region     `json:"blur_regions,omitempty"`
	ReflectionTime       time.Duration         `json:"reflection_time"`
	RequiresConfirmation bool                  `json:"requires_confirmation"`
	Confidence           float64               `json:"confidence"`
	Reason               string                `json:"reason"`
}

// ReflectionSeconds returns the reflection time in whole seconds for
// consumer payloads.
func (o Outcome) ReflectionSeconds() float64 {
	return o.ReflectionTime.Seconds()
}

// Engine applies the escalation ladder to analysis results. Rules evaluate
// top to bottom, first match wins. Thresholds come from calibration;
// settings gate the user-facing switches.
type Engine struct {
	th config.Thresholds
}

func NewEngine(th config.Thresholds) *Engine {
	return &Engine{th: th}
}

// Decide picks the action for one analyzed frame. budget is the effective
// processing budget the frame ran under; it only feeds the advisory
// confidence blend.
func (e *Engine) Decide(res *analysis.Result, st config.Settings, budget time.Duration) Outcome {
	conf := confidence(res, budget)

	if !st.FullScreenWarningEnabled {
		return outcome(ActionNone, analysis.WarnNone, nil, 0, conf, ReasonWarningsDisabled)
	}

	w := res.Warning
	base := time.Duration(st.MandatoryReflectionTimeSeconds) * time.Second
	critical := len(res.CriticalRegions)

	// Region pile-ups of confident detections navigate away instead of
	// blurring.
	if st.RegionBasedFullScreenEnabled &&
		res.RegionCount >= st.FullScreenRegionThreshold &&
		res.MaxConfidence >= st.HighConfidenceThreshold {
		return e.graduated(res.RegionCount, w, base, conf)
	}

	switch {
	case res.Density >= e.th.CriticalDensity || w.AtLeast(analysis.WarnCritical):
		return outcome(ActionImmediateClose, w, nil, 2*base, conf, ReasonCriticalDensity)
	case res.Density >= e.th.HighDensity || critical >= e.th.HighRegionCount:
		return outcome(ActionFullScreenBlur, w, nil, reflectionFor(w, base), conf, ReasonHighDensity)
	case res.Density >= st.DensityThreshold:
		return outcome(ActionFullScreenBlur, w, nil, reflectionFor(w, base), conf, ReasonUserThreshold)
	case res.Spatial.Variance < e.th.DistributedVariance && res.Density > e.th.DistributedDensity:
		return outcome(ActionFullScreenBlur, w, nil, reflectionFor(w, base), conf, ReasonDistributed)
	case res.Spatial.MaxQuadrant > e.th.ConcentratedQuadrant && critical >= e.th.ConcentratedRegions:
		return outcome(ActionFullScreenBlur, w, nil, reflectionFor(w, base), conf, ReasonConcentrated)
	case res.Density > e.th.SelectiveDensity || critical > 0:
		return outcome(ActionSelectiveBlur, w, res.CriticalRegions, reflectionFor(w, base), conf, ReasonSelective)
	default:
		return outcome(ActionNone, w, nil, 0, conf, ReasonClean)
	}
}

// graduated keys the navigation response to how many confident regions
// stacked up.
func (e *Engine) graduated(regionCount int, w analysis.WarningLevel, base time.Duration, conf float64) Outcome {
	action, mult := ActionGentleRedirect, time.Duration(2)
	switch {
	case regionCount >= e.th.AutoCloseRegions:
		action, mult = ActionAutoCloseApp, 5
	case regionCount >= e.th.NavigateBackRegions:
		action, mult = ActionNavigateBack, 4
	case regionCount >= e.th.ScrollAwayRegions:
		action, mult = ActionScrollAway, 3
	}
	return outcome(action, w, nil, mult*base, conf, ReasonRegionGraduated)
}

func outcome(a Action, w analysis.WarningLevel, regions []analysis.Region, reflection time.Duration, conf float64, reason string) Outcome {
	return Outcome{
		Action:               a,
		Warning:              w,
		BlurRegions:          regions,
		ReflectionTime:       reflection,
		RequiresConfirmation: w.AtLeast(analysis.WarnHigh),
		Confidence:           conf,
		Reason:               reason,
	}
}

// reflectionFor scales the mandatory reflection time by severity.
func reflectionFor(w analysis.WarningLevel, base time.Duration) time.Duration {
	switch w {
	case analysis.WarnMinimal:
		return base / 3
	case analysis.WarnLow:
		return 2 * base / 3
	case analysis.WarnMedium:
		return base
	case analysis.WarnHigh:
		return 2 * base
	case analysis.WarnCritical:
		return 3 * base
	default:
		return 0
	}
}

// confidence blends how strongly the evidence backs an outcome. Advisory
// only; rule selection never reads it.
func confidence(res *analysis.Result, budget time.Duration) float64 {
	c := weightDensity*res.Density +
		weightRegions*min(float64(len(res.CriticalRegions))/confidenceRegionCap, 1)
	if res.Grid != nil {
		c += weightConsistency * res.Grid.Consistency()
	}
	if budget > 0 {
		headroom := 1 - float64(res.ProcessingTime)/float64(budget)
		if headroom > 0 {
			c += weightLatency * headroom
		}
	}
	return min(c, 1)
}
