package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the registration protocol.
type Metrics struct {
	CommitmentsCreated prometheus.Counter
	NamesRegistered    prometheus.Counter
	NamesRenewed       prometheus.Counter
	RegisterFailures   *prometheus.CounterVec
	RevenueCollected   prometheus.Counter
}

// New creates and registers all registration metrics.
func New() *Metrics {
	return &Metrics{
		CommitmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selns_commitments_created_total",
			Help: "Total pending commitments accepted",
		}),
		NamesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selns_names_registered_total",
			Help: "Total successful name registrations",
		}),
		NamesRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selns_names_renewed_total",
			Help: "Total successful lease renewals",
		}),
		RegisterFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "selns_register_failures_total",
			Help: "Failed registration attempts by error code",
		}, []string{"code"}),
		RevenueCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selns_revenue_microcredits_total",
			Help: "Registration and renewal revenue collected, in microcredits",
		}),
	}
}
