package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Reconciliation metrics ─────────────────────────────────────────────────

var ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "settlement",
	Name:      "reconciliations_total",
	Help:      "Reconciliation runs by outcome (completed, failed).",
}, []string{"outcome"})

var ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "settlement",
	Name:      "reconciliation_duration_seconds",
	Help:      "Time spent loading, matching and persisting one client.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
})

var AllocationsWritten = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "settlement",
	Name:      "allocations_written_total",
	Help:      "Allocation rows written by reconciliation runs.",
})

var SettlementFlips = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "settlement",
	Name:      "settlement_flips_total",
	Help:      "Items whose settled flag changed, by direction (settled, reverted).",
}, []string{"direction"})

// ─── Coordinator metrics ────────────────────────────────────────────────────

var ClientLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "settlement",
	Name:      "client_lock_wait_seconds",
	Help:      "Time spent waiting for a client's serialization token.",
	Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
})

var ClientLocksHeld = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "settlement",
	Name:      "client_locks_active",
	Help:      "Clients with a held or awaited serialization token.",
})

type runTimer struct{ start time.Time }

func newRunTimer() runTimer { return runTimer{start: time.Now()} }

func (t runTimer) observe() {
	ReconciliationDuration.Observe(time.Since(t.start).Seconds())
}
