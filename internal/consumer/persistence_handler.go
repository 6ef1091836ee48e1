package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler appends consumed events to journal_event_log for auditing.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event. Redelivery of the same record is a no-op.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	var eventID *string
	if msg.EventID != "" {
		eventID = &msg.EventID
	}
	_, err := h.pool.Exec(ctx,
		`INSERT INTO journal_event_log (event_uuid, event_type, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		eventID,
		msg.EventType,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}
