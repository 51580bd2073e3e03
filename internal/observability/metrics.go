package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// damage-assessment pipeline.
type Metrics struct {
	RequestsConsumed prometheus.Counter
	ReportsProduced  prometheus.Counter
	AnalysisErrors   *prometheus.CounterVec // labels: stage={parse,extract,test,classify,mask,estimate,serialize}
	PipelineRunning  prometheus.Gauge

	// Analysis timing.
	AnalysisDuration prometheus.Histogram
	StageDuration    *prometheus.HistogramVec // labels: stage

	// External data sources.
	ImageryFetches       *prometheus.CounterVec // labels: outcome={success,error,empty}
	ImageryFetchDuration prometheus.Histogram
	ImageryCache         *prometheus.CounterVec // labels: result={hit,miss}
	FootprintFetches     *prometheus.CounterVec // labels: provider, outcome={success,error,empty}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_damage",
			Name:      "requests_consumed_total",
			Help:      "Total analysis requests read from the source topic.",
		}),
		ReportsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_damage",
			Name:      "reports_produced_total",
			Help:      "Total damage reports written to the sink topic.",
		}),
		AnalysisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sar_damage",
			Name:      "analysis_errors_total",
			Help:      "Analysis failures by pipeline stage.",
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sar_damage",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sar_damage",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete five-stage analysis run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sar_damage",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual analysis stages.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ImageryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sar_damage",
			Name:      "imagery_fetches_total",
			Help:      "Imagery catalog requests by outcome.",
		}, []string{"outcome"}),
		ImageryFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sar_damage",
			Name:      "imagery_fetch_duration_seconds",
			Help:      "Imagery catalog request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ImageryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sar_damage",
			Name:      "imagery_cache_total",
			Help:      "Scene query cache lookups by result.",
		}, []string{"result"}),
		FootprintFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sar_damage",
			Name:      "footprint_fetches_total",
			Help:      "Footprint provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	prometheus.MustRegister(
		m.RequestsConsumed,
		m.ReportsProduced,
		m.AnalysisErrors,
		m.PipelineRunning,
		m.AnalysisDuration,
		m.StageDuration,
		m.ImageryFetches,
		m.ImageryFetchDuration,
		m.ImageryCache,
		m.FootprintFetches,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RequestsConsumed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_damage", Name: "requests_consumed_total"}),
		ReportsProduced:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_damage", Name: "reports_produced_total"}),
		AnalysisErrors:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sar_damage", Name: "analysis_errors_total"}, []string{"stage"}),
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sar_damage", Name: "pipeline_running"}),
		AnalysisDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sar_damage", Name: "analysis_duration_seconds"}),
		StageDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "sar_damage", Name: "stage_duration_seconds"}, []string{"stage"}),
		ImageryFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sar_damage", Name: "imagery_fetches_total"}, []string{"outcome"}),
		ImageryFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sar_damage", Name: "imagery_fetch_duration_seconds"}),
		ImageryCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sar_damage", Name: "imagery_cache_total"}, []string{"result"}),
		FootprintFetches:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sar_damage", Name: "footprint_fetches_total"}, []string{"provider", "outcome"}),
	}
}
