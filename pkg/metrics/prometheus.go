package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for transaction counters.
const (
	OutcomeCompleted        = "completed"
	OutcomeRejectedFunds    = "insufficient_funds"
	OutcomeRejectedInput    = "invalid_input"
	OutcomeRejectedNotFound = "account_not_found"
	OutcomeConflict         = "conflict"
	OutcomeStorageError     = "storage_error"
)

// Collector holds the service's prometheus instruments behind its own
// registry so tests can create collectors without global state collisions.
type Collector struct {
	registry        *prometheus.Registry
	transactions    *prometheus.CounterVec
	duration        prometheus.Histogram
	entriesAppended prometheus.Counter
	accountsCreated prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		transactions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Transaction attempts by type and outcome",
		}, []string{"type", "outcome"}),
		duration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "Time taken to process a transaction attempt",
			Buckets: prometheus.DefBuckets,
		}),
		entriesAppended: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_entries_appended_total",
			Help: "Ledger entries appended by committed transactions",
		}),
		accountsCreated: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_accounts_created_total",
			Help: "Accounts registered",
		}),
	}
}

// ObserveTransaction records one attempt. Safe on a nil collector so the
// service can run unmetered.
func (c *Collector) ObserveTransaction(txType, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(txType, outcome).Inc()
	c.duration.Observe(d.Seconds())
}

func (c *Collector) AddEntriesAppended(n int) {
	if c == nil {
		return
	}
	c.entriesAppended.Add(float64(n))
}

func (c *Collector) IncAccountsCreated() {
	if c == nil {
		return
	}
	c.accountsCreated.Inc()
}

// Handler exposes the registry for a /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
