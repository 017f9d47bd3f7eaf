package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync engine metrics, exported on /metrics.
var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goldpos",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Completed sync runs by result.",
	}, []string{"result"})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "goldpos",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Duration of full sync runs.",
		Buckets:   prometheus.DefBuckets,
	})

	RecordsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goldpos",
		Subsystem: "sync",
		Name:      "records_pushed_total",
		Help:      "Records pushed to the CRM.",
	})

	RecordsPulled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goldpos",
		Subsystem: "sync",
		Name:      "records_pulled_total",
		Help:      "Records pulled from the CRM.",
	})

	SyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goldpos",
		Subsystem: "sync",
		Name:      "errors_total",
		Help:      "Per-record sync errors.",
	})

	PendingChanges = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "goldpos",
		Subsystem: "sync",
		Name:      "pending_changes",
		Help:      "Journal entries awaiting push.",
	})

	TransactionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goldpos",
		Subsystem: "pos",
		Name:      "transactions_total",
		Help:      "Transactions created by type.",
	}, []string{"type"})

	PaymentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goldpos",
		Subsystem: "pos",
		Name:      "payments_total",
		Help:      "Payments processed by method and status.",
	}, []string{"method", "status"})
)
