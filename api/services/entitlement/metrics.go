package entitlement

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics manages Prometheus instrumentation for synchronization and access checks.
type Metrics struct {
	syncTotal      *prometheus.CounterVec
	syncDuration   prometheus.Histogram
	providerErrors *prometheus.CounterVec
	decisions      *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton entitlement metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics(prometheus.DefaultRegisterer)
	})
	return metricsInstance
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitlements",
				Subsystem: "store",
				Name:      "sync_total",
				Help:      "Synchronization attempts by outcome (applied, failed, stale)",
			},
			[]string{"result"},
		),
		syncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "entitlements",
				Subsystem: "store",
				Name:      "sync_duration_seconds",
				Help:      "Time spent talking to the billing provider per synchronization",
				Buckets:   prometheus.DefBuckets,
			},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitlements",
				Subsystem: "provider",
				Name:      "errors_total",
				Help:      "Billing provider failures by class",
			},
			[]string{"class"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitlements",
				Subsystem: "guard",
				Name:      "decisions_total",
				Help:      "Feature guard outcomes by feature and presentation",
			},
			[]string{"feature", "presentation"},
		),
	}

	reg.MustRegister(
		m.syncTotal,
		m.syncDuration,
		m.providerErrors,
		m.decisions,
	)

	return m
}

func (m *Metrics) RecordSync(result string, elapsed time.Duration) {
	m.syncTotal.WithLabelValues(result).Inc()
	if result != "stale" {
		m.syncDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RecordProviderError(err error) {
	m.providerErrors.WithLabelValues(errorClass(err)).Inc()
}

// RecordDecision counts a guard outcome. Unknown features share one label to bound cardinality.
func (m *Metrics) RecordDecision(f Feature, p Presentation) {
	feature := string(f)
	if _, ok := freeTier[f]; !ok {
		feature = "unknown"
	}
	m.decisions.WithLabelValues(feature, p.String()).Inc()
}
