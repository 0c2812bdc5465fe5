package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry.
type Metrics struct {
	ExamsCreated  prometheus.Counter
	HistoryWrites *prometheus.CounterVec
	VerifyLatency prometheus.Histogram
	FeesWithdrawn prometheus.Counter
}

// New creates and registers the registry metrics.
func New() *Metrics {
	return &Metrics{
		ExamsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examledger_registry_exams_created_total",
			Help: "Total exams created through the registry",
		}),

		HistoryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examledger_registry_history_writes_total",
			Help: "Total participant history writes by reported status",
		}, []string{"status"}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "examledger_registry_verify_duration_seconds",
			Help:    "Duration of credential verification lookups",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		FeesWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examledger_registry_fees_withdrawn_total",
			Help: "Total fee withdrawal operations completed",
		}),
	}
}

// IncExamCreated records a successful exam creation.
func (m *Metrics) IncExamCreated() {
	if m != nil {
		m.ExamsCreated.Inc()
	}
}

// IncHistoryWrite records a history append or in-place update.
func (m *Metrics) IncHistoryWrite(status string) {
	if m != nil {
		m.HistoryWrites.WithLabelValues(status).Inc()
	}
}

// ObserveVerifyLatency records the duration of a verification lookup.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

// IncFeesWithdrawn records a completed withdrawal.
func (m *Metrics) IncFeesWithdrawn() {
	if m != nil {
		m.FeesWithdrawn.Inc()
	}
}
