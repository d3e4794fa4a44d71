package call

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors this package registers for a
// process: batches started/completed, cancellations by source, status
// register writes by source, and receive-ordering races won by each side
// (§11 DOMAIN STACK).
type Metrics struct {
	BatchesStarted   prometheus.Counter
	BatchesCompleted prometheus.Counter
	Cancellations    *prometheus.CounterVec
	StatusWrites     *prometheus.CounterVec
	RecvOrderRaces   *prometheus.CounterVec
}

// NewMetrics constructs a Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var m = &Metrics{
		BatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "call_batches_started_total",
			Help: "Total batches submitted via start_batch / start_batch_and_execute.",
		}),
		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "call_batches_completed_total",
			Help: "Total batches whose completion was delivered.",
		}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_cancellations_total",
			Help: "Cancellations, labeled by originating source.",
		}, []string{"source"}),
		StatusWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_status_writes_total",
			Help: "Status register writes, labeled by source (includes lost CAS races).",
		}, []string{"source"}),
		RecvOrderRaces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_recv_order_races_total",
			Help: "Receive-ordering races, labeled by which side (initial_first, message_first) won.",
		}, []string{"winner"}),
	}

	if reg != nil {
		reg.MustRegister(m.BatchesStarted, m.BatchesCompleted, m.Cancellations, m.StatusWrites, m.RecvOrderRaces)
	}
	return m
}

// defaultMetrics is registered against the default prometheus registry so
// that a Call created without an explicit Metrics still reports activity
// once the process exposes /metrics.
var defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
