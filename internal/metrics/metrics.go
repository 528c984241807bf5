// Package metrics exposes Prometheus counters for the session and checkout
// owners. A nil *Metrics records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry      *prometheus.Registry
	logins        *prometheus.CounterVec
	renewals      *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	finalizes     *prometheus.CounterVec
	activeTimers  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "renewals_total",
			Help:      "Silent renewal attempts by result.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Local session invalidations by reason.",
		}, []string{"reason"}),
		finalizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "finalize_total",
			Help:      "Checkout finalize calls by result.",
		}, []string{"result"}),
		activeTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "renewal_timer_armed",
			Help:      "1 while a renewal timer is armed.",
		}),
	}
	m.Registry.MustRegister(m.logins, m.renewals, m.invalidations, m.finalizes, m.activeTimers)
	return m
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Renewal(result string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(result).Inc()
}

func (m *Metrics) Invalidation(reason string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(reason).Inc()
}

func (m *Metrics) Finalize(result string) {
	if m == nil {
		return
	}
	m.finalizes.WithLabelValues(result).Inc()
}

func (m *Metrics) TimerArmed(armed bool) {
	if m == nil {
		return
	}
	if armed {
		m.activeTimers.Set(1)
	} else {
		m.activeTimers.Set(0)
	}
}

// Counter values for tests and diagnostics.
func (m *Metrics) RenewalCounter(result string) prometheus.Counter {
	return m.renewals.WithLabelValues(result)
}

func (m *Metrics) InvalidationCounter(reason string) prometheus.Counter {
	return m.invalidations.WithLabelValues(reason)
}

func (m *Metrics) FinalizeCounter(result string) prometheus.Counter {
	return m.finalizes.WithLabelValues(result)
}

func (m *Metrics) LoginCounter(result string) prometheus.Counter {
	return m.logins.WithLabelValues(result)
}
