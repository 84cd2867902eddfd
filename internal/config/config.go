// Package config handles daemon configuration and detection settings
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr          string
	LogLevel          string
	CaptureRate       float64 // Hz
	CaptureSource     string  // "screen" or a directory of images to replay
	BaseQuality       string
	CalibrationFile   string
	TelemetryDB       string // sqlite path, empty disables history
	CacheBudgetBytes  int64
	CacheTTLMs        int64
	HashSkipDistance  int // max pHash Hamming distance treated as duplicate
	ClassifierTargets []string
	Settings          Settings
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8700"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CaptureRate:       getEnvFloat("CAPTURE_RATE", 5.0),
		CaptureSource:     getEnv("CAPTURE_SOURCE", "screen"),
		BaseQuality:       getEnv("BASE_QUALITY", "balanced"),
		CalibrationFile:   getEnv("CALIBRATION_FILE", ""),
		TelemetryDB:       getEnv("TELEMETRY_DB", ""),
		CacheBudgetBytes:  int64(getEnvInt("CACHE_BUDGET_MB", 16)) << 20,
		CacheTTLMs:        int64(getEnvInt("ANALYSIS_CACHE_TTL_MS", 2000)),
		HashSkipDistance:  getEnvInt("HASH_SKIP_DISTANCE", 5),
		ClassifierTargets: getEnvList("CLASSIFIER_TARGETS", nil),
		Settings:          loadSettings(),
	}
}

// Settings is the inbound detection-behavior configuration. It is
// hot-swappable on the pipeline; swapped copies must pass Validate.
type Settings struct {
	DensityThreshold               float64
	FullScreenWarningEnabled       bool
	RegionBasedFullScreenEnabled   bool
	FullScreenRegionThreshold      int
	HighConfidenceThreshold        float64
	MandatoryReflectionTimeSeconds int
	MaxProcessingTimeMs            int64
	UltraFastModeEnabled           bool
	GPUAccelerationEnabled         bool
}

// DefaultSettings returns the shipped detection defaults.
func DefaultSettings() Settings {
	return Settings{
		DensityThreshold:               0.4,
		FullScreenWarningEnabled:       true,
		RegionBasedFullScreenEnabled:   true,
		FullScreenRegionThreshold:      6,
		HighConfidenceThreshold:        0.8,
		MandatoryReflectionTimeSeconds: 10,
		MaxProcessingTimeMs:            0, // 0 means the quality level's budget applies
		UltraFastModeEnabled:           false,
		GPUAccelerationEnabled:         false,
	}
}

func loadSettings() Settings {
	def := DefaultSettings()
	return Settings{
		DensityThreshold:               getEnvFloat("DENSITY_THRESHOLD", def.DensityThreshold),
		FullScreenWarningEnabled:       getEnvBool("FULLSCREEN_WARNING_ENABLED", def.FullScreenWarningEnabled),
		RegionBasedFullScreenEnabled:   getEnvBool("REGION_FULLSCREEN_ENABLED", def.RegionBasedFullScreenEnabled),
		FullScreenRegionThreshold:      getEnvInt("FULLSCREEN_REGION_THRESHOLD", def.FullScreenRegionThreshold),
		HighConfidenceThreshold:        getEnvFloat("HIGH_CONFIDENCE_THRESHOLD", def.HighConfidenceThreshold),
		MandatoryReflectionTimeSeconds: getEnvInt("REFLECTION_TIME_SECONDS", def.MandatoryReflectionTimeSeconds),
		MaxProcessingTimeMs:            int64(getEnvInt("MAX_PROCESSING_TIME_MS", int(def.MaxProcessingTimeMs))),
		UltraFastModeEnabled:           getEnvBool("ULTRA_FAST_MODE", def.UltraFastModeEnabled),
		GPUAccelerationEnabled:         getEnvBool("GPU_ACCELERATION", def.GPUAccelerationEnabled),
	}
}

// Validate rejects settings a hot-swap must not apply.
func (s Settings) Validate() error {
	if s.DensityThreshold < 0 || s.DensityThreshold > 1 {
		return fmt.Errorf("density threshold %v out of [0,1]", s.DensityThreshold)
	}
	if s.HighConfidenceThreshold < 0 || s.HighConfidenceThreshold > 1 {
		return fmt.Errorf("high confidence threshold %v out of [0,1]", s.HighConfidenceThreshold)
	}
	if s.FullScreenRegionThreshold < 1 {
		return fmt.Errorf("full screen region threshold %d below 1", s.FullScreenRegionThreshold)
	}
	if s.MandatoryReflectionTimeSeconds < 0 {
		return fmt.Errorf("reflection time %d negative", s.MandatoryReflectionTimeSeconds)
	}
	if s.MaxProcessingTimeMs < 0 {
		return fmt.Errorf("max processing time %d negative", s.MaxProcessingTimeMs)
	}
	return nil
}

// Thresholds are the escalation calibration constants. The defaults are the
// empirically chosen source values; the calibration file may override any of
// them individually.
type Thresholds struct {
	CriticalDensity      float64
	HighDensity          float64
	HighRegionCount      int
	DistributedVariance  float64
	DistributedDensity   float64
	ConcentratedQuadrant float64
	ConcentratedRegions  int
	SelectiveDensity     float64
	AutoCloseRegions     int
	NavigateBackRegions  int
	ScrollAwayRegions    int
}

// DefaultThresholds returns the shipped escalation calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalDensity:      0.8,
		HighDensity:          0.6,
		HighRegionCount:      8,
		DistributedVariance:  0.2,
		DistributedDensity:   0.25,
		ConcentratedQuadrant: 0.7,
		ConcentratedRegions:  5,
		SelectiveDensity:     0.1,
		AutoCloseRegions:     10,
		NavigateBackRegions:  8,
		ScrollAwayRegions:    6,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
