package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ entry outcomes, used as the "outcome" label.
const (
	outcomeRequeued       = "requeued"
	outcomeQuarantined    = "quarantined"
	outcomeRetryScheduled = "retry_scheduled"
)

var (
	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "futureself",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, by outcome.",
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "futureself",
		Subsystem: "dlq",
		Name:      "entries",
		Help:      "Rows currently held in outbox_dlq, by state.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(dlqOutcomeCounter, dlqBacklogGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomeCounter.WithLabelValues(entry.EventType, outcome).Inc()
}

// updateBacklogGauge refreshes the row counts per state: pending awaits a
// retry, requeued is back in the outbox, quarantined is given up on. A failed
// count leaves the previous values in place.
func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var pending, requeued, quarantined int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FILTER (WHERE quarantined_at IS NULL AND requeued_at IS NULL),
                                      COUNT(*) FILTER (WHERE quarantined_at IS NULL AND requeued_at IS NOT NULL),
                                      COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL)
                                 FROM outbox_dlq`).Scan(&pending, &requeued, &quarantined)
	if err != nil {
		return
	}
	dlqBacklogGauge.WithLabelValues("pending").Set(float64(pending))
	dlqBacklogGauge.WithLabelValues("requeued").Set(float64(requeued))
	dlqBacklogGauge.WithLabelValues("quarantined").Set(float64(quarantined))
}
