// Package metrics exposes prometheus counters for the transaction core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChargesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_charges_created_total",
		Help: "Escrow charges created at the payment processor.",
	})

	PaymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_payments_confirmed_total",
		Help: "Charges confirmed as succeeded.",
	})

	PayoutsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_payouts_released_total",
		Help: "Helper payouts released.",
	})

	RefundsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_refunds_issued_total",
		Help: "Refunds issued against escrow charges.",
	})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigswap_webhook_events_total",
		Help: "Processor webhook events received, by type.",
	}, []string{"type"})

	SchedulerRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_auto_release_runs_total",
		Help: "Auto-release scheduler runs.",
	})

	SchedulerReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_auto_release_payouts_total",
		Help: "Payouts released by the scheduler.",
	})

	SchedulerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigswap_auto_release_failures_total",
		Help: "Per-contract failures during scheduler runs.",
	})
)
