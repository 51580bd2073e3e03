package kafkaadapter

import (
	"context"
	"log/slog"

	"github.com/conflictmap/sar-damage-service/internal/config"
	"github.com/conflictmap/sar-damage-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces damage reports to the sink Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load publishes one serialized damage report.
func (w *Writer) Load(ctx context.Context, report domain.OutputReport) error {
	return w.writer.WriteMessages(ctx, mapOutputToMessage(report))
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// mapOutputToMessage converts a serialized report into a Kafka message.
// Header order is stable so downstream consumers can rely on it.
func mapOutputToMessage(report domain.OutputReport) kafkago.Message {
	msg := kafkago.Message{
		Key:   report.Key,
		Value: report.Value,
	}
	for _, key := range []string{"footprint_provider", "generated_at"} {
		if v, ok := report.Headers[key]; ok {
			msg.Headers = append(msg.Headers, kafkago.Header{Key: key, Value: []byte(v)})
		}
	}
	return msg
}
