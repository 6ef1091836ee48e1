package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// maxBackoff caps the delay between retries of a single DLQ entry.
const maxBackoff = time.Hour

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, logger *zap.Logger, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DLQManager{pool: pool, logger: logger, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (m *DLQManager) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		processed, err := m.RunOnce(ctx, batchSize)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("dlq iteration failed", zap.Error(err))
		} else if processed > 0 {
			m.logger.Info("dlq iteration complete", zap.Int("processed", processed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes a batch of due DLQ entries and returns how many were
// requeued or quarantined. Per-entry failures are joined into the error.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	entries, err := m.due(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, fmt.Errorf("dlq entry %d: %w", entry.ID, procErr))
			continue
		}
		processed++
	}
	updateBacklogGauge(ctx, m.pool)
	return processed, err
}

func (m *DLQManager) due(ctx context.Context, batchSize int) ([]dlqEntry, error) {
	const query = `SELECT dlq_id, event_id, event_uuid, event_type, topic, payload, reason, aggregate_type, aggregate_id, partition_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL
                     AND requeued_at IS NULL
                     AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []dlqEntry
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// handleEntry applies retry/quarantine logic for a single DLQ entry.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		recordDLQOutcome(entry, outcomeQuarantined)
		m.logger.Warn("dlq entry quarantined", zap.Int64("dlq_id", entry.ID), zap.String("event_type", entry.EventType))
		return nil
	}

	if insertErr := requeueOutbox(ctx, tx, entry); insertErr != nil {
		// The failed insert aborted tx; schedule the retry on a fresh one.
		_ = tx.Rollback(ctx)
		return m.scheduleRetry(ctx, entry, insertErr)
	}

	// The row stays as the event's retry ledger until the dispatcher delivers
	// it. Another failure clears requeued_at and the row waits out this delay.
	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := tx.Exec(ctx,
		`UPDATE outbox_dlq
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + make_interval(secs => $1),
                   requeued_at = NOW()
             WHERE dlq_id = $2`,
		delay.Seconds(), entry.ID,
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	recordDLQOutcome(entry, outcomeRequeued)
	return nil
}

func (m *DLQManager) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + make_interval(secs => $1),
                   reason = $2
             WHERE dlq_id = $3`,
		delay.Seconds(), cause.Error(), entry.ID,
	); err != nil {
		return err
	}
	recordDLQOutcome(entry, outcomeRetryScheduled)
	return nil
}

// backoffDelay calculates exponential backoff capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return maxBackoff
	}
	delay := time.Duration(1<<uint(attempt-1)) * m.baseDelay
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	return delay
}

// requeueOutbox reinserts the payload into the primary outbox table for replay.
// The original event UUID is kept so consumers can deduplicate.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.Topic == "" {
		return fmt.Errorf("missing topic for dlq entry %d", entry.ID)
	}

	const stmt = `INSERT INTO outbox (event_uuid, aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
                   VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := tx.Exec(ctx, stmt,
		entry.EventUUID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.PartitionKey,
		entry.Payload,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	EventID       int64
	EventUUID     string
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(rows pgx.Rows) (dlqEntry, error) {
	var entry dlqEntry
	if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventUUID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason, &entry.AggregateType, &entry.AggregateID, &entry.PartitionKey, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
