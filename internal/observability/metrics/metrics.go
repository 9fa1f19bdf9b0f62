package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments for the payment pipeline.
type Metrics struct {
	PollerCycles         *prometheus.CounterVec
	PollerErrors         *prometheus.CounterVec
	TransactionsObserved prometheus.Counter
	MatchOutcomes        *prometheus.CounterVec
	CampaignsProvisioned prometheus.Counter
	OrdersCreated        prometheus.Counter
	OrdersExpired        prometheus.Counter
	JobRuns              *prometheus.CounterVec
	JobErrors            *prometheus.CounterVec
}

// New registers the pipeline instruments against the given registerer. Tests
// pass a private registry; the application passes the default one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollerCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promocast_poller_cycles_total",
			Help: "Completed poll cycles per receiving address.",
		}, []string{"address"}),
		PollerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promocast_poller_errors_total",
			Help: "Failed poll cycles per receiving address.",
		}, []string{"address"}),
		TransactionsObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promocast_transactions_observed_total",
			Help: "Transfers fetched from the external ledger and recorded.",
		}),
		MatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promocast_match_outcomes_total",
			Help: "Reconciliation outcomes by kind (matched, untracked, late).",
		}, []string{"outcome"}),
		CampaignsProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promocast_campaigns_provisioned_total",
			Help: "Campaigns created from matched orders.",
		}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promocast_orders_created_total",
			Help: "Purchase orders accepted at intake.",
		}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promocast_orders_expired_total",
			Help: "Pending orders transitioned to expired by the sweep.",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promocast_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		JobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promocast_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.PollerCycles,
		m.PollerErrors,
		m.TransactionsObserved,
		m.MatchOutcomes,
		m.CampaignsProvisioned,
		m.OrdersCreated,
		m.OrdersExpired,
		m.JobRuns,
		m.JobErrors,
	)
	return m
}

func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

var Module = fx.Module("observability.metrics",
	fx.Provide(NewDefault),
)
