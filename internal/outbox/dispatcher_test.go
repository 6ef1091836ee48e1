package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/futureself/internal/events"
)

type stubProducer struct {
	mu         sync.Mutex
	err        error
	failTopics map[string]error
	writes     []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if err := s.failTopics[topic]; err != nil {
		return err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)

	s.writes = append(s.writes, writtenBatch{
		topic:    topic,
		messages: copied,
	})
	return nil
}

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestDeliverGroupsByTopicWithHeaders(t *testing.T) {
	producer := &stubProducer{}
	fixed := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	d := &Dispatcher{producer: producer, now: func() time.Time { return fixed }}

	messages := []Message{
		{EventID: 1, EventUUID: "uuid-1", EventType: events.TypeLogCreated, Topic: events.Topic, PartitionKey: "log:a", Payload: json.RawMessage(`{"log_id":"a"}`)},
		{EventID: 2, EventUUID: "uuid-2", EventType: events.TypeIdentityScored, Topic: "audit", PartitionKey: "identity:2026-10-18", Payload: json.RawMessage(`{"score":8}`)},
		{EventID: 3, EventUUID: "uuid-3", EventType: events.TypeReviewRecorded, Topic: events.Topic, PartitionKey: "review:b", Payload: json.RawMessage(`{"review_id":"b"}`)},
	}
	failed, err := d.deliver(context.Background(), messages)
	require.NoError(t, err)
	assert.Empty(t, failed)

	require.Len(t, producer.writes, 2)
	assert.Equal(t, events.Topic, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	assert.Equal(t, "audit", producer.writes[1].topic)

	first := producer.writes[0].messages[0]
	assert.Equal(t, "log:a", string(first.Key))
	assert.JSONEq(t, `{"log_id":"a"}`, string(first.Value))
	assert.Equal(t, fixed, first.Time)
	assert.Equal(t, map[string]string{
		events.HeaderEventType:     events.TypeLogCreated,
		events.HeaderEventID:       "uuid-1",
		events.HeaderSchemaVersion: events.SchemaVersion,
	}, headerMap(first))
}

func TestDeliverFailsOnlyMessagesWithoutTopic(t *testing.T) {
	producer := &stubProducer{}
	d := &Dispatcher{producer: producer, now: time.Now}

	failed, err := d.deliver(context.Background(), []Message{
		{EventID: 9, EventType: events.TypeLogCreated},
		{EventID: 10, EventType: events.TypeLogCreated, Topic: events.Topic, Payload: json.RawMessage(`{}`)},
	})
	require.ErrorContains(t, err, "has no topic")
	require.Len(t, failed, 1)
	assert.Equal(t, int64(9), failed[0].EventID)
	assert.Contains(t, failed[0].Failure, "has no topic")

	require.Len(t, producer.writes, 1)
	assert.Equal(t, events.Topic, producer.writes[0].topic)
}

func TestDeliverPropagatesWriterError(t *testing.T) {
	d := &Dispatcher{producer: &stubProducer{err: errors.New("broker unavailable")}, now: time.Now}

	failed, err := d.deliver(context.Background(), []Message{{EventID: 1, Topic: events.Topic, Payload: json.RawMessage(`{}`)}})
	require.ErrorContains(t, err, "broker unavailable")
	require.Len(t, failed, 1)
}

func TestDeliverReturnsOnlyTheFailedTopic(t *testing.T) {
	producer := &stubProducer{failTopics: map[string]error{"audit": errors.New("leader not available")}}
	d := &Dispatcher{producer: producer, now: time.Now}

	failed, err := d.deliver(context.Background(), []Message{
		{EventID: 1, EventUUID: "uuid-1", Topic: events.Topic, Payload: json.RawMessage(`{}`)},
		{EventID: 2, EventUUID: "uuid-2", Topic: "audit", Payload: json.RawMessage(`{}`)},
		{EventID: 3, EventUUID: "uuid-3", Topic: events.Topic, Payload: json.RawMessage(`{}`)},
	})
	require.ErrorContains(t, err, "write audit: leader not available")

	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].EventID)
	assert.Equal(t, "write audit: leader not available", failed[0].Failure)

	require.Len(t, producer.writes, 1)
	assert.Len(t, producer.writes[0].messages, 2)
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, nil, 5, time.Minute)

	assert.Equal(t, time.Minute, m.backoffDelay(1))
	assert.Equal(t, 2*time.Minute, m.backoffDelay(2))
	assert.Equal(t, 16*time.Minute, m.backoffDelay(5))
	assert.Equal(t, time.Hour, m.backoffDelay(7))
	assert.Equal(t, time.Hour, m.backoffDelay(64))
	assert.Equal(t, time.Minute, m.backoffDelay(0))
}

func TestKafkaProducerRejectsWritesAfterClose(t *testing.T) {
	producer := NewKafkaProducer([]string{"localhost:9092"}, "test")
	require.NoError(t, producer.Close())

	err := producer.WriteMessages(context.Background(), "journal_events", kafka.Message{Value: []byte("{}")})
	require.ErrorIs(t, err, ErrProducerClosed)
}
