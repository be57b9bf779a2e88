package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatcherMetrics records poll-cycle and trigger outcomes.
type DispatcherMetrics struct {
	cycleDuration prometheus.Histogram
	dueLocations  prometheus.Gauge
	triggerOK     prometheus.Counter
	triggerFail   *prometheus.CounterVec
}

// NewDispatcherMetrics registers the dispatcher metrics on the provided registerer.
func NewDispatcherMetrics(reg prometheus.Registerer) *DispatcherMetrics {
	if reg == nil {
		return &DispatcherMetrics{}
	}
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_cycle_duration_seconds",
		Help:    "Duration of dispatcher poll cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	dueLocations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_due_locations",
		Help: "Locations found due in the most recent poll cycle.",
	})
	triggerOK := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_trigger_success_total",
		Help: "Successful post triggers.",
	})
	triggerFail := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_trigger_failure_total",
		Help: "Failed post triggers by error class.",
	}, []string{"reason"})
	reg.MustRegister(cycleDuration, dueLocations, triggerOK, triggerFail)
	return &DispatcherMetrics{
		cycleDuration: cycleDuration,
		dueLocations:  dueLocations,
		triggerOK:     triggerOK,
		triggerFail:   triggerFail,
	}
}

// ObserveCycle records the duration of one poll cycle.
func (m *DispatcherMetrics) ObserveCycle(duration time.Duration) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
}

// SetDue records how many locations the evaluator marked due.
func (m *DispatcherMetrics) SetDue(count int) {
	if m == nil || m.dueLocations == nil {
		return
	}
	m.dueLocations.Set(float64(count))
}

// IncSuccess increments the success counter.
func (m *DispatcherMetrics) IncSuccess() {
	if m == nil || m.triggerOK == nil {
		return
	}
	m.triggerOK.Inc()
}

// IncFailure increments the failure counter for the given reason.
func (m *DispatcherMetrics) IncFailure(reason string) {
	if m == nil || m.triggerFail == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.triggerFail.WithLabelValues(reason).Inc()
}
