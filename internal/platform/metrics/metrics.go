package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus counters for the core operations. Construct
// once at process start; services treat a nil *Metrics as "metrics off" so
// tests don't touch the default registry.
type Metrics struct {
	OrdersCreated       prometheus.Counter
	OrdersApproved      prometheus.Counter
	OrdersRejected      prometheus.Counter
	SeatsAllocated      prometheus.Counter
	CapacityExhausted   prometheus.Counter
	CommissionsCredited prometheus.Counter
	CodesIssued         prometheus.Counter
	CodesRefused        prometheus.Counter
}

// New creates and registers all counters on the default registry.
func New() *Metrics {
	return &Metrics{
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_orders_created_total",
			Help: "Total orders created",
		}),
		OrdersApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_orders_approved_total",
			Help: "Total orders approved",
		}),
		OrdersRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_orders_rejected_total",
			Help: "Total orders rejected",
		}),
		SeatsAllocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_seats_allocated_total",
			Help: "Total seat capacity units allocated",
		}),
		CapacityExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_capacity_exhausted_total",
			Help: "Total allocation attempts that found no eligible seat",
		}),
		CommissionsCredited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_commissions_credited_total",
			Help: "Total referral commissions credited",
		}),
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_twofa_codes_issued_total",
			Help: "Total one-time codes issued",
		}),
		CodesRefused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "windseat_twofa_codes_refused_total",
			Help: "Total one-time code requests refused by the limiter",
		}),
	}
}
