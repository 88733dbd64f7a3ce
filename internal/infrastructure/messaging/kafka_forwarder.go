// Package messaging forwards relayed domain events to Kafka for consumers
// outside this service, such as the external damage subsystem.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/erp/warehouse/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrForwarderUnavailable is returned while the circuit breaker is open
var ErrForwarderUnavailable = errors.New("kafka forwarder unavailable")

// ForwardedEventTypes are the event types published to Kafka
var ForwardedEventTypes = []string{
	inventory.EventTypeDamageRecorded,
	inventory.EventTypeReturnOrderRequested,
}

// MessageWriter is the subset of *kafka.Writer used by the forwarder
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventForwarder publishes outbox entries to a Kafka topic behind a circuit breaker
type KafkaEventForwarder struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	types   []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaEventForwarder builds a forwarder writing to cfg.Topic
func NewKafkaEventForwarder(cfg config.KafkaConfig, logger *zap.Logger) *KafkaEventForwarder {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}
	return NewKafkaEventForwarderWithWriter(writer, cfg, logger)
}

// NewKafkaEventForwarderWithWriter builds a forwarder around an existing writer
func NewKafkaEventForwarderWithWriter(writer MessageWriter, cfg config.KafkaConfig, logger *zap.Logger) *KafkaEventForwarder {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-forwarder",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &KafkaEventForwarder{
		writer:  writer,
		breaker: breaker,
		types:   ForwardedEventTypes,
		timeout: timeout,
		logger:  logger,
	}
}

// Forward writes the entry payload keyed by aggregate id. Event types not in
// ForwardedEventTypes are ignored.
func (f *KafkaEventForwarder) Forward(ctx context.Context, entry *shared.OutboxEntry) error {
	if !slices.Contains(f.types, entry.EventType) {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(entry.AggregateType + ":" + entry.AggregateID),
		Value: entry.Payload,
		Time:  entry.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(entry.EventID.String())},
			{Key: "event-type", Value: []byte(entry.EventType)},
			{Key: "aggregate-type", Value: []byte(entry.AggregateType)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	_, err := f.breaker.Execute(func() (any, error) {
		writeCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		return nil, f.writer.WriteMessages(writeCtx, msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrForwarderUnavailable, err)
	case err != nil:
		return fmt.Errorf("write %s to kafka: %w", entry.EventType, err)
	}

	f.logger.Debug("event forwarded to kafka",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
	return nil
}

// State returns the circuit breaker state
func (f *KafkaEventForwarder) State() gobreaker.State {
	return f.breaker.State()
}

// Close flushes and closes the writer
func (f *KafkaEventForwarder) Close() error {
	return f.writer.Close()
}
