// Package metrics exposes Prometheus counters and histograms for the
// chain engine and integrity supervisor, and the HTTP handler that
// serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this service registers.
type Metrics struct {
	BlocksSealed         prometheus.Counter
	TransactionsAdmitted prometheus.Counter
	RejectionsByReason   *prometheus.CounterVec
	MiningDuration       prometheus.Histogram
	CurrentDifficulty    prometheus.Gauge
	PendingPoolSize      prometheus.Gauge
	IntegrityChecksRun   prometheus.Counter
	IntegrityRecoveries  prometheus.Counter
}

// New registers every collector against a dedicated registry and
// returns the Metrics handle plus the HTTP handler serving them.
func New() (*Metrics, http.Handler) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		BlocksSealed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "blocks_sealed_total",
			Help:      "Total blocks sealed and persisted.",
		}),
		TransactionsAdmitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_admitted_total",
			Help:      "Total transactions accepted into the pending pool.",
		}),
		RejectionsByReason: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transaction_rejections_total",
			Help:      "Transactions rejected at admission, by reason.",
		}, []string{"reason"}),
		MiningDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "mining_duration_seconds",
			Help:      "Wall-clock time spent mining a block to its target difficulty.",
			Buckets:   prometheus.DefBuckets,
		}),
		CurrentDifficulty: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "current_difficulty",
			Help:      "Current proof-of-work difficulty.",
		}),
		PendingPoolSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "pending_pool_size",
			Help:      "Number of transactions awaiting the next seal.",
		}),
		IntegrityChecksRun: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "integrity_checks_total",
			Help:      "Total integrity checks run by the health supervisor.",
		}),
		IntegrityRecoveries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "integrity_recoveries_total",
			Help:      "Total successful recoveries after a detected integrity failure.",
		}),
	}

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m, handler
}

// ObserveStats copies a chain.Stats-shaped snapshot onto the gauges.
// Kept as plain setters (rather than importing pkg/chain) so metrics
// has no dependency on the engine's package.
func (m *Metrics) ObserveStats(difficulty, pendingCount int) {
	m.CurrentDifficulty.Set(float64(difficulty))
	m.PendingPoolSize.Set(float64(pendingCount))
}

// RecordRejection increments the rejection counter for reason.
func (m *Metrics) RecordRejection(reason string) {
	m.RejectionsByReason.WithLabelValues(reason).Inc()
}
