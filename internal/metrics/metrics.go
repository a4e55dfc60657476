// Package metrics holds the Prometheus metrics of a sync run. A run is a
// batch job, so metrics live on a private registry and are pushed to a
// Pushgateway instead of being scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "tracksync"

// DefaultJob is the Pushgateway job name.
const DefaultJob = "tracksync"

// Operation results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics of one run.
type Metrics struct {
	Registry *prometheus.Registry

	templatesObserved prometheus.Gauge
	providerUp        *prometheus.GaugeVec
	collectDuration   *prometheus.HistogramVec
	trackerOperations *prometheus.CounterVec
	lastRun           prometheus.Gauge
}

// New creates the run metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		templatesObserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "templates_observed",
			Help:      "Number of distinct templates reported by providers",
		}),
		providerUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_up",
				Help:      "Whether the provider passed liveness and listed its templates (1) or not (0)",
			},
			[]string{"provider"},
		),
		collectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collect_duration_seconds",
				Help:      "Duration of template listing per provider",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"provider"},
		),
		trackerOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracker_operations_total",
				Help:      "Tracker operations by kind and result",
			},
			[]string{"operation", "result"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last sync run finished",
		}),
	}

	m.Registry.MustRegister(
		m.templatesObserved,
		m.providerUp,
		m.collectDuration,
		m.trackerOperations,
		m.lastRun,
	)
	return m
}

// SetTemplatesObserved records the number of distinct templates seen.
func (m *Metrics) SetTemplatesObserved(n int) {
	m.templatesObserved.Set(float64(n))
}

// SetProviderUp records whether a provider was usable this run.
func (m *Metrics) SetProviderUp(provider string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.providerUp.WithLabelValues(provider).Set(v)
}

// ObserveCollect records how long listing a provider took.
func (m *Metrics) ObserveCollect(provider string, d time.Duration) {
	m.collectDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// AddTrackerOperations counts n tracker operations.
func (m *Metrics) AddTrackerOperations(operation, result string, n int) {
	if n <= 0 {
		return
	}
	m.trackerOperations.WithLabelValues(operation, result).Add(float64(n))
}

// MarkRun sets the last run timestamp.
func (m *Metrics) MarkRun(t time.Time) {
	m.lastRun.Set(float64(t.Unix()))
}

// Push sends the registry to a Pushgateway.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if job == "" {
		job = DefaultJob
	}
	if err := push.New(gatewayURL, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
