package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry        *prometheus.Registry
	transitions     *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	payoutsCreated  *prometheus.CounterVec
	payoutAmount    *prometheus.CounterVec
	processorChecks *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "state_transitions_total",
			Help:      "Committed state transitions by entity, source and target status.",
		}, []string{"entity", "from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "cas_conflicts_total",
			Help:      "Optimistic concurrency conflicts by operation.",
		}, []string{"operation"}),
		payoutsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "payouts_created_total",
			Help:      "Payouts created by the order status that released the funds.",
		}, []string{"order_status", "currency"}),
		payoutAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "payout_amount_total",
			Help:      "Sum of payout amounts that reached a status, in major currency units.",
		}, []string{"status", "currency"}),
		processorChecks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Name:      "payment_processor_check_seconds",
			Help:      "Latency of payment processor charge lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions, m.conflicts, m.payoutsCreated, m.payoutAmount, m.processorChecks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Transition(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Inc()
}

func (m *Metrics) Conflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) PayoutCreated(orderStatus, currency string) {
	if m == nil {
		return
	}
	m.payoutsCreated.WithLabelValues(orderStatus, currency).Inc()
}

func (m *Metrics) PayoutAmount(status, currency string, amount float64) {
	if m == nil {
		return
	}
	m.payoutAmount.WithLabelValues(status, currency).Add(amount)
}

func (m *Metrics) ProcessorCheck(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.processorChecks.WithLabelValues(outcome).Observe(seconds)
}
