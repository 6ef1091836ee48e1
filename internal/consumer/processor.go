// Package consumer reads journal events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/futureself/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	EventType string
	EventID   string
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryBackoff sets the delay before the first handler retry and the cap
// the doubling delay stops at.
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return func(p *Processor) {
		if initial > 0 {
			p.retryInitial = initial
		}
		if maxDelay >= p.retryInitial {
			p.retryMax = maxDelay
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
// A message whose handler fails is retried in place, so later messages on the
// partition are never committed ahead of it.
type Processor struct {
	reader       Reader
	handler      Handler
	logger       *zap.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		logger:       zap.NewNop(),
		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch error", zap.Error(err))
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode error",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr),
			)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Error("commit error after decode failure", zap.Error(commitErr))
			}
			continue
		}

		if err := p.handle(ctx, event); err != nil {
			return err
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Error("commit error", zap.Error(commitErr))
		} else {
			recordProcessed(event)
		}
	}
}

// handle retries the handler with capped exponential backoff until it succeeds.
// The only error returned is the context's.
func (p *Processor) handle(ctx context.Context, event Message) error {
	delay := p.retryInitial
	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil {
			return nil
		}
		p.logger.Error("handler error",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID),
			zap.Int64("offset", event.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		recordHandlerError(event)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, p.retryMax)
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, events.HeaderEventType)
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	if version, ok := headerValue(msg, events.HeaderSchemaVersion); ok && string(version) != events.SchemaVersion {
		return Message{}, fmt.Errorf("unsupported schema_version %q", version)
	}
	if !json.Valid(msg.Value) {
		return Message{}, fmt.Errorf("payload is not valid JSON (%d bytes)", len(msg.Value))
	}
	eventID, _ := headerValue(msg, events.HeaderEventID)

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		EventType: string(eventType),
		EventID:   string(eventID),
		Payload:   json.RawMessage(append([]byte(nil), msg.Value...)),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
