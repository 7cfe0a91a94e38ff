package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the redirect engine collectors.
type Metrics struct {
	emissions        *prometheus.CounterVec
	emissionDuration prometheus.Histogram
	emittedFiles     prometheus.Gauge
	removedFiles     prometheus.Counter
	skippedRules     prometheus.Gauge

	reloads        *prometheus.CounterVec
	reloadDuration prometheus.Histogram

	decisions *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		emissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redirector_emissions_total",
				Help: "Total number of config emission cycles",
			},
			[]string{"result"},
		),

		emissionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "redirector_emission_duration_seconds",
				Help:    "Duration of config emission cycles in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to 8s
			},
		),

		emittedFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "redirector_emitted_files",
				Help: "Number of domain config files written by the last successful cycle",
			},
		),

		removedFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "redirector_removed_files_total",
				Help: "Total number of stale domain config files removed",
			},
		),

		skippedRules: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "redirector_skipped_rules",
				Help: "Number of rules skipped as unrenderable by the last successful cycle",
			},
		),

		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redirector_proxy_reloads_total",
				Help: "Total number of edge proxy reload attempts",
			},
			[]string{"result"},
		),

		reloadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "redirector_proxy_reload_duration_seconds",
				Help:    "Duration of edge proxy reload attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redirector_decisions_total",
				Help: "Total number of redirect decisions by type and crawler category",
			},
			[]string{"type", "crawler"},
		),
	}
}

// ObserveEmission records one emission cycle.
func (m *Metrics) ObserveEmission(success bool, written, removed, skipped int, duration time.Duration) {
	m.emissions.WithLabelValues(result(success)).Inc()
	if !success {
		return
	}
	m.emissionDuration.Observe(duration.Seconds())
	m.emittedFiles.Set(float64(written))
	m.removedFiles.Add(float64(removed))
	m.skippedRules.Set(float64(skipped))
}

// ObserveReload records one reload attempt.
func (m *Metrics) ObserveReload(success bool, duration time.Duration) {
	m.reloads.WithLabelValues(result(success)).Inc()
	m.reloadDuration.Observe(duration.Seconds())
}

// ObserveDecision records one resolved request.
func (m *Metrics) ObserveDecision(kind, crawler string) {
	m.decisions.WithLabelValues(kind, crawler).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
