package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/models"
)

// MessageWriter is the part of kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes run events to a Kafka topic keyed by run id.
type KafkaNotifier struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaNotifier returns a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string, l *zap.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return NewKafkaNotifierWithWriter(writer, l)
}

func NewKafkaNotifierWithWriter(w MessageWriter, l *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: w, logger: logger.OrNop(l)}
}

func (n *KafkaNotifier) ObserveRun(ctx context.Context, rec *models.RunRecord) error {
	data, err := json.Marshal(NewRunEvent(rec))
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.ID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventRunFinished)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.logger.Error("failed to send kafka run event", zap.Error(err))
		return err
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
