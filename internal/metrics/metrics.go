package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WatchersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchmkt_watchers_created_total",
			Help: "Watchers created by customer tier",
		},
		[]string{"tier"}, // free|paid
	)

	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchmkt_checks_total",
			Help: "Executor check outcomes per tick",
		},
		[]string{"outcome"}, // succeeded|failed|triggered|skipped|expired
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchmkt_webhook_deliveries_total",
			Help: "Webhook delivery outcomes after retries",
		},
		[]string{"outcome"}, // delivered|exhausted
	)

	BillingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchmkt_billing_runs_total",
			Help: "Recurring billing outcomes",
		},
		[]string{"outcome"}, // success|failed|skipped
	)

	SLAViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchmkt_sla_violations_total",
			Help: "SLA violations by type",
		},
		[]string{"type"}, // uptime|consecutive_failures
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		WatchersCreatedTotal,
		ChecksTotal,
		WebhookDeliveriesTotal,
		BillingRunsTotal,
		SLAViolationsTotal,
	)
}
