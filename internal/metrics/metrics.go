// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementsTotal counts lifecycle outcomes. The trigger label tells
	// provider approvals apart from scheduler auto-releases.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transactions_total",
		Help: "Settlement transactions by resulting status and trigger.",
	}, []string{"status", "trigger"})

	// GatewayRequestsTotal counts outbound gateway calls by operation and
	// outcome (ok, error, timeout).
	GatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_gateway_requests_total",
		Help: "Payment gateway requests by operation and outcome.",
	}, []string{"op", "outcome"})

	// StrategyDowngradesTotal counts marketplace orders that fell back to
	// plain orders because the gateway rejected the split.
	StrategyDowngradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_strategy_downgrades_total",
		Help: "Marketplace-to-plain order fallbacks at checkout.",
	})

	// SchedulerSweepsTotal counts escrow scheduler sweeps and how many
	// transactions each outcome saw.
	SchedulerSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_scheduler_sweeps_total",
		Help: "Escrow scheduler sweep results.",
	}, []string{"result"})
)
