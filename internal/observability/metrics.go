package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wind_explorer"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Region selection.
	SelectionTransitions *prometheus.CounterVec // labels: event={enable,cancel,clear,down,move,up}
	SelectionCommits     prometheus.Counter

	// Analysis pipeline.
	Analyses          *prometheus.CounterVec // labels: outcome={success,invalid,busy,error}
	AnalysisDuration  prometheus.Histogram
	AnalysisAvailable prometheus.Gauge

	// Analysis service client.
	ServiceRequests *prometheus.CounterVec   // labels: endpoint={weather,statistics,heatmap}, outcome={success,error}
	ServiceDuration *prometheus.HistogramVec // labels: endpoint
	WeatherCache    *prometheus.CounterVec   // labels: result={hit,miss}

	HeatmapFallbacks prometheus.Counter
	Exports          *prometheus.CounterVec // labels: format={xlsx,pdf}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SelectionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_events_total",
			Help:      "Selection events applied to the region selector, by kind.",
		}, []string{"event"}),
		SelectionCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_commits_total",
			Help:      "Regions committed by the selector.",
		}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis requests by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete weather retrieval and statistics cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		AnalysisAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_available",
			Help:      "1 when a completed analysis is installed, 0 otherwise.",
		}),
		ServiceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_requests_total",
			Help:      "Analysis service requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ServiceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_request_duration_seconds",
			Help:      "Analysis service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		HeatmapFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_fallbacks_total",
			Help:      "Heatmap refreshes that fell back to the sample set.",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Report exports by format.",
		}, []string{"format"}),
	}

	prometheus.MustRegister(
		m.SelectionTransitions,
		m.SelectionCommits,
		m.Analyses,
		m.AnalysisDuration,
		m.AnalysisAvailable,
		m.ServiceRequests,
		m.ServiceDuration,
		m.WeatherCache,
		m.HeatmapFallbacks,
		m.Exports,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SelectionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "selection_events_total"}, []string{"event"}),
		SelectionCommits:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "selection_commits_total"}),
		Analyses:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "analyses_total"}, []string{"outcome"}),
		AnalysisDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "analysis_duration_seconds"}),
		AnalysisAvailable:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "analysis_available"}),
		ServiceRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "service_requests_total"}, []string{"endpoint", "outcome"}),
		ServiceDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "service_request_duration_seconds"}, []string{"endpoint"}),
		WeatherCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_cache_total"}, []string{"result"}),
		HeatmapFallbacks:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "heatmap_fallbacks_total"}),
		Exports:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "exports_total"}, []string{"format"}),
	}
}
