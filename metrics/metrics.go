// Package metrics exposes the disburser's Prometheus instrumentation.
// The disburser has exactly one thing worth instrumenting externally:
// batch throughput and outcome, because that is what an operator
// dashboards and alerts on.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poolcore/disburser/model"
)

// Registered collectors. A package-level registry (rather than the global
// default registry) keeps metrics registration explicit and testable.
var (
	Registry = prometheus.NewRegistry()

	BatchesRun = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "disburser",
		Name:      "batches_run_total",
		Help:      "Number of batches the engine has processed.",
	})

	ObligationsByStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disburser",
		Name:      "obligations_total",
		Help:      "Number of obligations processed, partitioned by terminal status.",
	}, []string{"status"})

	LastProcessedBlock = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "disburser",
		Name:      "last_processed_block",
		Help:      "Block height at the end of the most recently completed automated iteration.",
	})

	WalletBalanceAtoms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "disburser",
		Name:      "wallet_balance_atoms",
		Help:      "Wallet balance, in atoms, as of the most recent automated iteration.",
	})
)

func init() {
	Registry.MustRegister(BatchesRun, ObligationsByStatus, LastProcessedBlock, WalletBalanceAtoms)
}

// ObserveBatch records one completed batch's outcome distribution.
func ObserveBatch(results []model.PaymentResult) {
	BatchesRun.Inc()
	for _, r := range results {
		ObligationsByStatus.WithLabelValues(r.Status.String()).Inc()
	}
}

// Handler returns the HTTP handler that serves Registry in Prometheus
// exposition format, for a caller to mount at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
