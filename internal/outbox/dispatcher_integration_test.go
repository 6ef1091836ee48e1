//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"

	"example.com/futureself/internal/events"
	"example.com/futureself/internal/persistence/postgres"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventUUID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, eventUUID, events.TypeLogCreated))

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, zaptest.NewLogger(t), 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.Topic, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.Equal(t, eventUUID, headerMap(producer.writes[0].messages[0])[events.HeaderEventID])

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	// Nothing left to claim.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventUUID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, eventUUID, events.TypeReviewRecorded))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, zaptest.NewLogger(t), 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.Topic))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.Topic)), 0.0001)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_uuid = $1`, eventUUID).Scan(&reason))
	require.Contains(t, reason, "kafka write failed")

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("down")}, zaptest.NewLogger(t), 10*time.Millisecond, 5)
	retryUUID := uuid.NewString()
	exhaustedUUID := uuid.NewString()
	seedOutbox(t, ctx, pool, retryUUID, events.TypeLogCreated)
	seedOutbox(t, ctx, pool, exhaustedUUID, events.TypeIdentityScored)
	require.NoError(t, dispatcher.processBatch(ctx))

	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3 WHERE event_uuid = $1`, exhaustedUUID)
	require.NoError(t, err)

	manager := NewDLQManager(pool, zaptest.NewLogger(t), 3, time.Minute)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, processed)

	var requeued int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_uuid = $1 AND published_at IS NULL`, retryUUID).Scan(&requeued))
	require.Equal(t, 1, requeued)

	var quarantined bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT quarantined_at IS NOT NULL FROM outbox_dlq WHERE event_uuid = $1`, exhaustedUUID).Scan(&quarantined))
	require.True(t, quarantined)

	require.InDelta(t, 0, testutil.ToFloat64(dlqBacklogGauge.WithLabelValues("pending")), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(dlqBacklogGauge.WithLabelValues("requeued")), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(dlqBacklogGauge.WithLabelValues("quarantined")), 0.0001)
}

func TestPersistentOutageBacksOffAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventUUID := uuid.NewString()
	seedOutbox(t, ctx, pool, eventUUID, events.TypeLogCreated)

	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("brokers down")}, zaptest.NewLogger(t), 10*time.Millisecond, 5)
	manager := NewDLQManager(pool, zaptest.NewLogger(t), 2, 200*time.Millisecond)

	dlqRow := func() (retryCount int, quarantined bool) {
		t.Helper()
		var rows int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(MAX(retry_count), 0), COALESCE(BOOL_OR(quarantined_at IS NOT NULL), false)
               FROM outbox_dlq WHERE event_uuid = $1`, eventUUID).Scan(&rows, &retryCount, &quarantined))
		require.Equal(t, 1, rows, "one retry ledger row per event")
		return retryCount, quarantined
	}

	for attempt := 1; attempt <= 2; attempt++ {
		require.NoError(t, dispatcher.processBatch(ctx))
		retries, quarantined := dlqRow()
		require.Equal(t, attempt-1, retries)
		require.False(t, quarantined)

		// The next retry is not due until the backoff elapses.
		if attempt > 1 {
			processed, err := manager.RunOnce(ctx, 10)
			require.NoError(t, err)
			require.Zero(t, processed)
			time.Sleep(250 * time.Millisecond)
		}

		processed, err := manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, processed)
	}

	require.NoError(t, dispatcher.processBatch(ctx))
	time.Sleep(450 * time.Millisecond)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	retries, quarantined := dlqRow()
	require.Equal(t, 2, retries)
	require.True(t, quarantined)

	var unpublished int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&unpublished))
	require.Zero(t, unpublished)

	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed, "quarantined entries are not retried")
}

func TestDeliveredReplayClearsRetryLedger(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	eventUUID := uuid.NewString()
	seedOutbox(t, ctx, pool, eventUUID, events.TypeReviewRecorded)

	producer := &stubProducer{err: errors.New("brokers down")}
	dispatcher := NewDispatcher(pool, producer, zaptest.NewLogger(t), 10*time.Millisecond, 5)
	require.NoError(t, dispatcher.processBatch(ctx))

	manager := NewDLQManager(pool, zaptest.NewLogger(t), 3, time.Minute)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	producer.mu.Lock()
	producer.err = nil
	producer.mu.Unlock()
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	var remaining int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE event_uuid = $1`, eventUUID).Scan(&remaining))
	require.Zero(t, remaining)
}

func TestDispatcherRoutesOnlyFailedTopicToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	okUUID := uuid.NewString()
	failingUUID := uuid.NewString()
	seedOutboxOnTopic(t, ctx, pool, okUUID, events.TypeLogCreated, events.Topic)
	seedOutboxOnTopic(t, ctx, pool, failingUUID, events.TypeLogCreated, "journal_audit")

	producer := &stubProducer{failTopics: map[string]error{"journal_audit": errors.New("unknown topic")}}
	dispatcher := NewDispatcher(pool, producer, zaptest.NewLogger(t), 10*time.Millisecond, 5)
	require.NoError(t, dispatcher.processBatch(ctx))

	var dlqUUIDs []string
	rows, err := pool.Query(ctx, `SELECT event_uuid FROM outbox_dlq`)
	require.NoError(t, err)
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		dlqUUIDs = append(dlqUUIDs, id)
	}
	rows.Close()
	require.Equal(t, []string{failingUUID}, dlqUUIDs)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 2, published)
}

func TestClaimedRowsAreSkippedUntilLeaseExpires(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeLogCreated)

	first := NewDispatcher(pool, &stubProducer{}, zaptest.NewLogger(t), 10*time.Millisecond, 5)
	second := NewDispatcher(pool, &stubProducer{}, zaptest.NewLogger(t), 10*time.Millisecond, 5)

	claimed, err := first.fetchAndClaim(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	again, err := second.fetchAndClaim(ctx)
	require.NoError(t, err)
	require.Empty(t, again, "a live claim hides the row from other dispatchers")

	second.claimLease = 10 * time.Millisecond
	time.Sleep(50 * time.Millisecond)
	reclaimed, err := second.fetchAndClaim(ctx)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1, "an abandoned claim is picked up again")
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("futureself"),
		postgrescontainer.WithUsername("futureself"),
		postgrescontainer.WithPassword("futureself"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = postgres.Migrate(ctx, pool)
	require.NoError(t, err)
	return pool
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventUUID, eventType string) int64 {
	t.Helper()
	return seedOutboxOnTopic(t, ctx, pool, eventUUID, eventType, events.Topic)
}

func seedOutboxOnTopic(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventUUID, eventType, topic string) int64 {
	t.Helper()

	aggregateID := uuid.NewString()
	payload, err := json.Marshal(map[string]any{"log_id": aggregateID})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (event_uuid, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         RETURNING event_id`,
		eventUUID, "log", aggregateID, eventType, topic, "log:"+aggregateID, payload, eventUUID,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
