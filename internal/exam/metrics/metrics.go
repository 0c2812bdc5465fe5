package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for exam instances. One shared instance is
// labeled by exam code so a single registration covers every deployment.
type Metrics struct {
	Enrollments       *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	CredentialsMinted *prometheus.CounterVec
}

// New creates and registers the exam instance metrics.
func New() *Metrics {
	return &Metrics{
		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examledger_enrollments_total",
			Help: "Total successful enrollments by exam code and payment path",
		}, []string{"exam_code", "path"}), // path: "native", "token", "sponsored"

		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examledger_submissions_total",
			Help: "Total result submissions by exam code and outcome",
		}, []string{"exam_code", "outcome"}), // outcome: "passed", "failed"

		CredentialsMinted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examledger_credentials_minted_total",
			Help: "Total credentials minted by exam code",
		}, []string{"exam_code"}),
	}
}

// IncEnrollment records a successful enrollment.
func (m *Metrics) IncEnrollment(code, path string) {
	if m != nil {
		m.Enrollments.WithLabelValues(code, path).Inc()
	}
}

// IncSubmission records a result submission outcome.
func (m *Metrics) IncSubmission(code, outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(code, outcome).Inc()
	}
}

// IncCredentialMinted records a minted credential.
func (m *Metrics) IncCredentialMinted(code string) {
	if m != nil {
		m.CredentialsMinted.WithLabelValues(code).Inc()
	}
}
