package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter persists failed events for investigation.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a failed outbox message in the DLQ alongside the supplied reason.
// A first failure is immediately eligible for retry. A replayed event that
// fails again reuses its row, keeping the retry count and the next retry time
// the DLQ manager scheduled when it requeued the event.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_uuid, event_type, topic, payload, reason, aggregate_type, aggregate_id, partition_key, next_retry_at)
	         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())
	    ON CONFLICT (event_uuid) DO UPDATE
	         SET event_id = EXCLUDED.event_id,
	             reason = EXCLUDED.reason,
	             last_attempt_at = NOW(),
	             requeued_at = NULL`,
		msg.EventID, msg.EventUUID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.PartitionKey,
	)
	return err
}
