package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for credential issuance.
type Metrics struct {
	Issued  *prometheus.CounterVec
	Refused *prometheus.CounterVec
	Revoked prometheus.Counter
}

// New creates and registers the credential metrics.
func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_credentials_issued_total",
			Help: "Credentials issued, by credential type",
		}, []string{"type"}),
		Refused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_credentials_refused_total",
			Help: "Issuance refusals, by reason",
		}, []string{"reason"}),
		Revoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_credentials_revoked_total",
			Help: "Credentials marked revoked",
		}),
	}
}

// IncIssued records an issued credential.
func (m *Metrics) IncIssued(credType string) {
	if m != nil {
		m.Issued.WithLabelValues(credType).Inc()
	}
}

// IncRefused records a refused issuance.
func (m *Metrics) IncRefused(reason string) {
	if m != nil {
		m.Refused.WithLabelValues(reason).Inc()
	}
}

// IncRevoked records a revocation.
func (m *Metrics) IncRevoked() {
	if m != nil {
		m.Revoked.Inc()
	}
}
