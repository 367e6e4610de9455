// Package stats provides Prometheus metrics and the session ledger.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Detector metrics
	OpportunitiesFound *prometheus.CounterVec
	BestProfitBps      prometheus.Gauge

	// Risk metrics
	TradesBlocked *prometheus.CounterVec

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	LegsSubmitted     *prometheus.CounterVec
	FallbacksTotal    prometheus.Counter
	RealizedLamports  prometheus.Gauge
	SimulationsFailed prometheus.Counter

	// Refresh metrics
	AccountUpdates  *prometheus.CounterVec
	RegisteredPools prometheus.Gauge

	// Cycle metrics
	CycleDuration prometheus.Histogram
	CyclesTotal   prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	WalletLamports      prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_arb_lab"
	}

	return &Metrics{
		OpportunitiesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "opportunities_total",
			Help:      "Total number of opportunities detected by kind",
		}, []string{"kind"}),
		BestProfitBps: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "best_profit_bps",
			Help:      "Profit of the best opportunity in the last cycle, basis points",
		}),

		TradesBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "trades_blocked_total",
			Help:      "Total number of trades blocked by reason",
		}, []string{"reason"}),

		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "runs_total",
			Help:      "Total number of execution attempts by outcome",
		}, []string{"outcome"}),
		LegsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "legs_submitted_total",
			Help:      "Total number of transactions submitted by leg",
		}, []string{"leg"}),
		FallbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "fallbacks_total",
			Help:      "Total number of fallback unwinds attempted",
		}),
		RealizedLamports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_lamports",
			Help:      "Cumulative realized profit in lamports",
		}),
		SimulationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "simulations_failed_total",
			Help:      "Total number of legs rejected by simulation",
		}),

		AccountUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "account_updates_total",
			Help:      "Total number of account updates applied by source",
		}, []string{"source"}),
		RegisteredPools: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "registered_pools",
			Help:      "Number of pools in the registry",
		}),

		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Evaluation cycle duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total number of evaluation cycles",
		}),

		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last completed cycle",
		}),
		WalletLamports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "wallet_lamports",
			Help:      "Last observed wallet balance in lamports",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
