package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"phalanx/internal/scoring"

	"github.com/segmentio/kafka-go"
)

// KafkaMirror publishes verdicts to a Kafka topic, keyed by user id so one
// user's anomalies stay in partition order.
type KafkaMirror struct {
	writer *kafka.Writer
}

// NewKafkaMirror creates a mirror writing to the given brokers and topic.
func NewKafkaMirror(brokers []string, topic string, logger *slog.Logger) *KafkaMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 100 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-mirror")
			}),
		},
	}
}

func (m *KafkaMirror) Name() string { return "kafka" }

// Publish writes one verdict message.
func (m *KafkaMirror) Publish(ctx context.Context, v *scoring.Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}
	return m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(v.Event.UserID),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (m *KafkaMirror) Close() error {
	return m.writer.Close()
}
