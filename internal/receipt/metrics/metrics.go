package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the receipt pipeline.
type Metrics struct {
	Accepted *prometheus.CounterVec
	Rejected *prometheus.CounterVec
}

// New creates and registers the receipt metrics.
func New() *Metrics {
	return &Metrics{
		Accepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_receipts_accepted_total",
			Help: "Receipts accepted into the ledger, by action category",
		}, []string{"category"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_receipts_rejected_total",
			Help: "Receipt submissions rejected, by error code",
		}, []string{"code"}),
	}
}

// IncAccepted records an accepted receipt.
func (m *Metrics) IncAccepted(category string) {
	if m != nil {
		m.Accepted.WithLabelValues(category).Inc()
	}
}

// IncRejected records a rejected submission.
func (m *Metrics) IncRejected(code string) {
	if m != nil {
		m.Rejected.WithLabelValues(code).Inc()
	}
}
