// Package outbox delivers journal events recorded in the Postgres outbox to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/futureself/internal/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// defaultClaimLease is how long a claimed row stays invisible to other
// dispatchers before it is considered abandoned and claimed again.
const defaultClaimLease = 2 * time.Minute

// Dispatcher drains the outbox table and delivers events to Kafka.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	dlq              *DLQWriter
	logger           *zap.Logger
	pollInterval     time.Duration
	batchSize        int
	claimLease       time.Duration
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		pool:             pool,
		producer:         producer,
		dlq:              NewDLQWriter(pool),
		logger:           logger,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		claimLease:       defaultClaimLease,
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatcher error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	failed, err := d.deliver(ctx, messages)
	if len(failed) > 0 {
		d.logger.Warn("outbox delivery failed, routing events to DLQ",
			zap.Int("failed", len(failed)),
			zap.Int("events", len(messages)),
			zap.Error(err),
		)
		failedCounter.Add(float64(len(failed)))
		if dlqErr := d.moveToDLQ(ctx, failed); dlqErr != nil {
			return dlqErr
		}
	}
	deliveredCounter.Add(float64(len(messages) - len(failed)))
	return d.markPublished(ctx, messages, failed)
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) (messages []Message, err error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil || len(messages) == 0 {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `SELECT event_id, event_uuid, aggregate_type, aggregate_id, event_type, topic, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
          AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $2))
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize, d.claimLease.Seconds())
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.EventID, &msg.EventUUID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.PartitionKey, &msg.Payload); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// deliver groups messages per topic and writes each group in one call. It
// returns the messages that were not written, each carrying the cause in
// Failure, and the joined write errors.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) ([]Message, error) {
	batches := make(map[string][]kafka.Message)
	members := make(map[string][]Message)
	order := make([]string, 0)

	var failed []Message
	var errs error
	for _, msg := range messages {
		if msg.Topic == "" {
			err := fmt.Errorf("outbox event %d has no topic", msg.EventID)
			msg.Failure = err.Error()
			failed = append(failed, msg)
			errs = errors.Join(errs, err)
			continue
		}
		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: []byte(msg.Payload),
			Time:  d.now().UTC(),
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(msg.EventType)},
				{Key: events.HeaderEventID, Value: []byte(msg.EventUUID)},
				{Key: events.HeaderSchemaVersion, Value: []byte(events.SchemaVersion)},
			},
		}
		if _, ok := batches[msg.Topic]; !ok {
			order = append(order, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
		members[msg.Topic] = append(members[msg.Topic], msg)
	}

	for _, topic := range order {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			err = fmt.Errorf("write %s: %w", topic, err)
			for _, msg := range members[topic] {
				msg.Failure = err.Error()
				failed = append(failed, msg)
			}
			errs = errors.Join(errs, err)
		}
	}
	return failed, errs
}

// markPublished closes out a processed batch. Delivered events also clear any
// DLQ row left from an earlier failed attempt; failed events keep theirs.
func (d *Dispatcher) markPublished(ctx context.Context, messages, failed []Message) error {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	skip := make(map[int64]struct{}, len(failed))
	for _, msg := range failed {
		skip[msg.EventID] = struct{}{}
	}
	delivered := make([]string, 0, len(messages))
	for _, msg := range messages {
		if _, ok := skip[msg.EventID]; !ok {
			delivered = append(delivered, msg.EventUUID)
		}
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return err
	}
	if len(delivered) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE event_uuid = ANY($1) AND quarantined_at IS NULL`, delivered); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, failed []Message) error {
	for _, msg := range failed {
		if err := d.dlq.Write(ctx, msg, msg.Failure); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	EventUUID     string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       json.RawMessage
	// Failure is set by deliver on messages that could not be written.
	Failure string
}
