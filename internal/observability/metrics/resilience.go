package metrics

import "github.com/prometheus/client_golang/prometheus"

// ResilienceMetrics implements resilience.Observer.
type ResilienceMetrics struct {
	service      string
	retries      *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewResilienceMetrics(registerer prometheus.Registerer, service string) *ResilienceMetrics {
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Total retried calls to external dependencies.",
		},
		[]string{"service", "operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"service", "operation", "to"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the breaker for an operation is not closed.",
		},
		[]string{"service", "operation"},
	)
	registerer.MustRegister(retries, transitions, breakerState)

	return &ResilienceMetrics{
		service:      service,
		retries:      retries,
		transitions:  transitions,
		breakerState: breakerState,
	}
}

func (m *ResilienceMetrics) OnRetry(operation string, _ int) {
	m.retries.WithLabelValues(m.service, operation).Inc()
}

func (m *ResilienceMetrics) OnStateChange(operation string, _ string, to string) {
	m.transitions.WithLabelValues(m.service, operation, to).Inc()
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
}
