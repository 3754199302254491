package metrics

import "github.com/prometheus/client_golang/prometheus"

// Analysis Prometheus metrics.
var (
	AnalysisRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analysis_runs_total",
			Help:      "Total number of analysis runs",
		},
		[]string{"strategy", "status"},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Analysis duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"strategy"},
	)

	AnalysisDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "analysis_documents",
			Help:      "Number of documents per analysis",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	AnalysisTopics = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "analysis_topics",
			Help:      "Number of topics chosen per analysis",
			Buckets:   prometheus.LinearBuckets(1, 1, 12),
		},
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analysis_fallback_total",
			Help:      "Analyses answered by a fallback strategy",
		},
		[]string{"strategy"},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "result_cache_total",
			Help:      "Result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var analysisMetricsRegistered bool

// RegisterAnalysisMetrics registers Prometheus analysis metrics. Must be called once from main.
func RegisterAnalysisMetrics() {
	if analysisMetricsRegistered {
		return
	}
	prometheus.MustRegister(AnalysisRunsTotal)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisDocuments)
	prometheus.MustRegister(AnalysisTopics)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(ResultCacheTotal)
	analysisMetricsRegistered = true
}
