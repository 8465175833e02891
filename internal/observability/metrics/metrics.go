package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values shared by every counter.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeFailure  = "failure"
	OutcomeStale    = "stale"
)

// BookingMetrics exposes counters/histograms for the booking client core.
type BookingMetrics struct {
	slotQueries       *prometheus.CounterVec
	submissions       *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	scheduleMutations *prometheus.CounterVec
	remoteLatency     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Availability slot queries by outcome",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment lifecycle transitions by action and outcome",
		}, []string{"action", "outcome"}),
		scheduleMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "schedule",
			Name:      "mutations_total",
			Help:      "Weekly schedule and absence mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carebook",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of directory API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.submissions, m.transitions, m.scheduleMutations, m.remoteLatency)
	return m
}

func (m *BookingMetrics) ObserveSlotQuery(outcome string) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

func (m *BookingMetrics) ObserveScheduleMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.scheduleMutations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRemoteCall records one API round trip. status is the HTTP status
// code as text, or "error" when no response arrived.
func (m *BookingMetrics) ObserveRemoteCall(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.remoteLatency.WithLabelValues(operation, status).Observe(seconds)
}
