package topicdex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	documents *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topicdex",
			Subsystem: "sdk",
			Name:      "analyses_total",
			Help:      "SDK analyses by requested strategy and outcome (ok, cached, error).",
		}, []string{"strategy", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topicdex",
			Subsystem: "sdk",
			Name:      "analysis_duration_seconds",
			Help:      "SDK analysis duration in seconds by requested strategy.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"strategy"}),
		documents: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topicdex",
			Subsystem: "sdk",
			Name:      "analysis_documents",
			Help:      "Documents per SDK analysis by requested strategy.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}, []string{"strategy"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topicdex",
			Subsystem: "sdk",
			Name:      "fallbacks_total",
			Help:      "SDK analyses answered by a fallback, by requested and resolved strategy.",
		}, []string{"strategy", "resolved"}),
	}
	if err := registerOrReuse(reg, &m.runs); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.documents); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.fallbacks); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("topicdex: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("topicdex: register metric: %w", err)
	}
	return nil
}

// run describes one finished analysis. requested is always set; result
// fields are zero when the analysis failed.
type run struct {
	requested Strategy
	documents int
	result    Result
}

// fellBack reports whether the result came from a different pipeline than
// the one requested.
func (r run) fellBack() bool {
	return r.result.FallbackReason != "" && r.result.Strategy != "" && r.result.Strategy != r.requested
}

func (r run) attrs(dur time.Duration) []any {
	attrs := []any{
		"strategy", string(r.requested),
		"documents", r.documents,
		"duration", dur,
	}
	if r.result.Strategy == "" {
		return attrs
	}
	attrs = append(attrs, slog.Group("result",
		"strategy", string(r.result.Strategy),
		"algorithm", r.result.Algorithm,
		"topics", r.result.OptimalTopics,
		"cached", r.result.Cached,
	))
	if r.result.FallbackReason != "" {
		attrs = append(attrs, "fallback_reason", r.result.FallbackReason)
	}
	return attrs
}

// observer logs and counts SDK analyses.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(r run, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	strategy := string(r.requested)

	if o.metrics != nil {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case r.result.Cached:
			status = "cached"
		}
		o.metrics.runs.WithLabelValues(strategy, status).Inc()
		o.metrics.duration.WithLabelValues(strategy).Observe(dur.Seconds())
		if err == nil {
			o.metrics.documents.WithLabelValues(strategy).Observe(float64(r.documents))
			if r.fellBack() {
				o.metrics.fallbacks.WithLabelValues(strategy, string(r.result.Strategy)).Inc()
			}
		}
	}

	if o.logger == nil {
		return
	}
	switch {
	case err != nil:
		o.logger.Warn("analysis failed", append(r.attrs(dur), "error", err)...)
	case r.fellBack():
		o.logger.Warn("analysis fell back", r.attrs(dur)...)
	default:
		o.logger.Info("analysis completed", r.attrs(dur)...)
	}
}
