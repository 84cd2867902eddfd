package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "screenveil"

var (
	// framesAdmittedTotal is a counter of frames admitted for analysis.
	framesAdmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_admitted_total",
			Help:      "Total number of frames admitted for analysis",
		},
	)

	// framesDroppedTotal is a counter of frames dropped before analysis.
	framesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped before analysis",
		},
		[]string{"reason"}, // reason: min_interval, rapid_scroll_skip, superseded
	)

	// analysisDuration is a histogram of per-frame analysis duration in seconds.
	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Histogram of per-frame analysis duration in seconds",
			Buckets:   []float64{.005, .01, .02, .033, .05, .075, .1, .15, .2, .3, .5, 1},
		},
		[]string{"level"},
	)

	// budgetViolationsTotal is a counter of frames that exceeded their time budget.
	budgetViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_violations_total",
			Help:      "Total number of frames that exceeded their processing time budget",
		},
		[]string{"level"},
	)

	// classifierDuration is a histogram of classifier call duration in seconds.
	classifierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_duration_seconds",
			Help:      "Duration of classifier calls in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op"},
	)

	// classifierCallsTotal is a counter of classifier calls.
	classifierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_calls_total",
			Help:      "Total number of classifier calls",
		},
		[]string{"op", "status"}, // status: success, error
	)

	// actionsTotal is a counter of recommended actions.
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of recommended actions by kind",
		},
		[]string{"action"},
	)

	// warningsTotal is a counter of warning levels assigned to frames.
	warningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Total number of frames by assigned warning level",
		},
		[]string{"warning"},
	)

	// fallbacksTotal is a counter of conservative fallback results.
	fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of conservative fallback results by operation",
		},
		[]string{"op"},
	)

	// qualityLevel is a gauge of the current processing quality level.
	qualityLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_level",
			Help:      "Current processing quality level (0=ultra_fast .. 3=high)",
		},
	)

	// perfState is a gauge of the performance monitor state.
	perfState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "perf_state",
			Help:      "Performance monitor state (0=optimal, 1=degraded, 2=warning, 3=critical)",
		},
	)

	// violationRate is a gauge of the budget violation rate over the sample window.
	violationRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "violation_rate",
			Help:      "Fraction of recent frames that exceeded their time budget",
		},
	)

	// errorRate is a gauge of the failure rate over the error window.
	errorRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "error_rate",
			Help:      "Fraction of recent operations that failed",
		},
	)

	// errorHealth is a gauge of the recovery coordinator health.
	errorHealth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "error_health",
			Help:      "Recovery coordinator health (0=healthy, 1=recovering, 2=degraded, 3=critical)",
		},
	)

	// breakersOpen is a gauge of circuit breakers currently open.
	breakersOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breakers_open",
			Help:      "Number of circuit breakers currently open",
		},
	)

	// cacheEntries is a gauge of live analysis cache entries.
	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of live entries in the analysis cache",
		},
	)

	// cacheUsedBytes is a gauge of analysis cache occupancy in bytes.
	cacheUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_used_bytes",
			Help:      "Estimated bytes held by the analysis cache",
		},
	)

	// cacheHits is a gauge mirroring the cumulative cache hit count.
	cacheHits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_hits",
			Help:      "Cumulative analysis cache hits",
		},
	)

	// cacheMisses is a gauge mirroring the cumulative cache miss count.
	cacheMisses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_misses",
			Help:      "Cumulative analysis cache misses",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		framesAdmittedTotal,
		framesDroppedTotal,
		analysisDuration,
		budgetViolationsTotal,
		classifierDuration,
		classifierCallsTotal,
		actionsTotal,
		warningsTotal,
		fallbacksTotal,
		qualityLevel,
		perfState,
		violationRate,
		errorRate,
		errorHealth,
		breakersOpen,
		cacheEntries,
		cacheUsedBytes,
		cacheHits,
		cacheMisses,
	}
)

// RecordFrameAdmitted records a frame admitted for analysis.
func RecordFrameAdmitted() {
	framesAdmittedTotal.Inc()
}

// RecordFrameDropped records a frame dropped before analysis.
func RecordFrameDropped(reason string) {
	framesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordAnalysis records a completed frame analysis.
func RecordAnalysis(level string, durationSeconds float64, violated bool) {
	analysisDuration.WithLabelValues(level).Observe(durationSeconds)
	if violated {
		budgetViolationsTotal.WithLabelValues(level).Inc()
	}
}

// RecordClassifierCall records a classifier call.
func RecordClassifierCall(op, status string, durationSeconds float64) {
	classifierDuration.WithLabelValues(op).Observe(durationSeconds)
	classifierCallsTotal.WithLabelValues(op, status).Inc()
}

// RecordFallback records a conservative fallback result.
func RecordFallback(op string) {
	fallbacksTotal.WithLabelValues(op).Inc()
}

// MetricsSink mirrors published telemetry into the Prometheus metrics.
type MetricsSink struct{}

func (MetricsSink) PublishDecision(d Decision) {
	actionsTotal.WithLabelValues(d.Action).Inc()
	warningsTotal.WithLabelValues(d.Warning).Inc()
}

func (MetricsSink) PublishSnapshot(s Snapshot) {
	qualityLevel.Set(float64(s.Level))
	perfState.Set(float64(s.Perf.State))
	violationRate.Set(s.Perf.ViolationRate)
	errorRate.Set(s.Errors.Rate)
	errorHealth.Set(float64(s.Errors.Health))
	breakersOpen.Set(float64(len(s.Errors.OpenBreakers)))
	cacheEntries.Set(float64(s.Cache.Entries))
	cacheUsedBytes.Set(float64(s.Cache.UsedBytes))
	cacheHits.Set(float64(s.Cache.Hits))
	cacheMisses.Set(float64(s.Cache.Misses))
}
