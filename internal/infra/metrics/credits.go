package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(chargesTotal, refundsTotal, refundsLostTotal, grantsActivatedTotal, grantsExpiredTotal)
}

var chargesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credits_charges_total",
		Help: "Credit charge attempts by kind and outcome (ok/rejected).",
	},
	[]string{"kind", "outcome"},
)

var refundsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credits_refunds_total",
		Help: "Compensating refunds applied, by kind.",
	},
	[]string{"kind"},
)

var refundsLostTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credits_refunds_lost_total",
		Help: "Refunds dropped because no grant was active at refund time.",
	},
	[]string{"kind"},
)

var grantsActivatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grants_activated_total",
		Help: "Grants activated, by plan name.",
	},
	[]string{"plan"},
)

var grantsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "grants_expired_total",
		Help: "Grants swept by the expiry worker.",
	},
)

func IncGrantsExpired(n int) {
	grantsExpiredTotal.Add(float64(n))
}

func IncCharge(kind, outcome string) {
	chargesTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func IncRefund(kind string) {
	refundsTotal.WithLabelValues(norm(kind)).Inc()
}

func IncRefundLost(kind string) {
	refundsLostTotal.WithLabelValues(norm(kind)).Inc()
}

func IncGrantActivated(plan string) {
	grantsActivatedTotal.WithLabelValues(norm(plan)).Inc()
}
