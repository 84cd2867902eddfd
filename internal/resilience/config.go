package resilience

import "time"

// Circuit breaker configuration constants
const (
	// Default configuration
	DefaultThreshold         = 5
	DefaultWindow            = 60 * time.Second
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 1

	// Fast configuration (aggressive, for frame-budget paths)
	FastThreshold         = 3
	FastWindow            = 30 * time.Second
	FastResetTimeout      = 10 * time.Second
	FastHalfOpenSuccesses = 1

	// Slow configuration (lenient, for storage and telemetry sinks)
	SlowThreshold         = 10
	SlowWindow            = 120 * time.Second
	SlowResetTimeout      = 60 * time.Second
	SlowHalfOpenSuccesses = 2
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures within Window before opening
	Window            time.Duration // rolling window for counting failures
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		Window:            DefaultWindow,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// FastConfig returns aggressive settings for paths that must fail fast
// inside a frame budget.
func FastConfig() Config {
	return Config{
		Threshold:         FastThreshold,
		Window:            FastWindow,
		ResetTimeout:      FastResetTimeout,
		HalfOpenSuccesses: FastHalfOpenSuccesses,
	}
}

// SlowConfig returns lenient settings for less critical paths.
func SlowConfig() Config {
	return Config{
		Threshold:         SlowThreshold,
		Window:            SlowWindow,
		ResetTimeout:      SlowResetTimeout,
		HalfOpenSuccesses: SlowHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
