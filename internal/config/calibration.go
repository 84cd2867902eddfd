package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Calibration files are small TOML documents; anything larger is rejected
// before parsing.
const maxCalibrationBytes = 1 << 20

// calibrationFile mirrors Thresholds with pointer fields so that unset keys
// keep their defaults.
type calibrationFile struct {
	CriticalDensity      *float64 `toml:"critical_density"`
	HighDensity          *float64 `toml:"high_density"`
	HighRegionCount      *int     `toml:"high_region_count"`
	DistributedVariance  *float64 `toml:"distributed_variance"`
	DistributedDensity   *float64 `toml:"distributed_density"`
	ConcentratedQuadrant *float64 `toml:"concentrated_quadrant"`
	ConcentratedRegions  *int     `toml:"concentrated_regions"`
	SelectiveDensity     *float64 `toml:"selective_density"`
	AutoCloseRegions     *int     `toml:"auto_close_regions"`
	NavigateBackRegions  *int     `toml:"navigate_back_regions"`
	ScrollAwayRegions    *int     `toml:"scroll_away_regions"`
}

// LoadThresholds returns DefaultThresholds overlaid with values from path.
// An empty path returns the defaults unchanged.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}

	if filepath.Ext(path) != ".toml" {
		return th, fmt.Errorf("calibration file %s: expected .toml", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return th, fmt.Errorf("calibration file: %w", err)
	}
	if info.Size() > maxCalibrationBytes {
		return th, fmt.Errorf("calibration file %s too large (%d bytes)", path, info.Size())
	}

	var f calibrationFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return th, fmt.Errorf("parse calibration file: %w", err)
	}

	if f.CriticalDensity != nil {
		th.CriticalDensity = *f.CriticalDensity
	}
	if f.HighDensity != nil {
		th.HighDensity = *f.HighDensity
	}
	if f.HighRegionCount != nil {
		th.HighRegionCount = *f.HighRegionCount
	}
	if f.DistributedVariance != nil {
		th.DistributedVariance = *f.DistributedVariance
	}
	if f.DistributedDensity != nil {
		th.DistributedDensity = *f.DistributedDensity
	}
	if f.ConcentratedQuadrant != nil {
		th.ConcentratedQuadrant = *f.ConcentratedQuadrant
	}
	if f.ConcentratedRegions != nil {
		th.ConcentratedRegions = *f.ConcentratedRegions
	}
	if f.SelectiveDensity != nil {
		th.SelectiveDensity = *f.SelectiveDensity
	}
	if f.AutoCloseRegions != nil {
		th.AutoCloseRegions = *f.AutoCloseRegions
	}
	if f.NavigateBackRegions != nil {
		th.NavigateBackRegions = *f.NavigateBackRegions
	}
	if f.ScrollAwayRegions != nil {
		th.ScrollAwayRegions = *f.ScrollAwayRegions
	}

	if err := th.validate(); err != nil {
		return DefaultThresholds(), fmt.Errorf("calibration file %s: %w", path, err)
	}
	return th, nil
}

func (t Thresholds) validate() error {
	for name, v := range map[string]float64{
		"critical_density":      t.CriticalDensity,
		"high_density":          t.HighDensity,
		"distributed_variance":  t.DistributedVariance,
		"distributed_density":   t.DistributedDensity,
		"concentrated_quadrant": t.ConcentratedQuadrant,
		"selective_density":     t.SelectiveDensity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s = %v out of [0,1]", name, v)
		}
	}
	for name, v := range map[string]int{
		"high_region_count":     t.HighRegionCount,
		"concentrated_regions":  t.ConcentratedRegions,
		"auto_close_regions":    t.AutoCloseRegions,
		"navigate_back_regions": t.NavigateBackRegions,
		"scroll_away_regions":   t.ScrollAwayRegions,
	} {
		if v < 1 {
			return fmt.Errorf("%s = %d below 1", name, v)
		}
	}
	return nil
}
