package almagestAuth

import (
	"io"
	"log/slog"

	internalaudit "github.com/almagest-io/almagestAuth/internal/audit"
)

// NewSlogEventSink writes each auth event as one structured log record.
func NewSlogEventSink(logger *slog.Logger) EventSink {
	return internalaudit.NewSlogSink(logger)
}

// NewJSONEventSink writes one JSON object per event to w.
func NewJSONEventSink(w io.Writer) EventSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewChannelEventSink buffers events on a channel, mainly for tests.
func NewChannelEventSink(buffer int) (EventSink, <-chan AuthEvent) {
	s := internalaudit.NewChannelSink(buffer)
	return s, s.Events()
}

// NewKafkaEventSink publishes events to topic. It returns nil when brokers
// or topic are empty. The engine closes the sink on Engine.Close.
func NewKafkaEventSink(brokers []string, topic string, logger *slog.Logger) EventSink {
	s := internalaudit.NewKafkaSink(brokers, topic, logger)
	if s == nil {
		return nil
	}
	return s
}
