package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaWriteTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON to a Kafka topic, keyed by member id so
// one member's events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaSink creates a sink writing to topic. It returns nil when brokers
// or topic are empty so callers can fall back to another sink.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaSink(writer, logger)
}

func newKafkaSink(w messageWriter, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{writer: w, logger: logger}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()

	err = s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.MemberID),
		Value: payload,
		Time:  event.Timestamp,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit: kafka emit failed", "event_type", event.EventType, "error", err)
	}
}

// Close flushes and closes the underlying writer. Safe on a nil sink.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
