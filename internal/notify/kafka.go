package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier публикует события заказов в Kafka.
type KafkaNotifier struct {
	w *kafka.Writer
}

// NewKafkaNotifier настраивает writer:
// - Hash-балансировка по ключу: события одного заказа попадают в одну партицию;
// - RequireAll: ждём подтверждения ISR-реплик, чтобы не терять события.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Close освобождает ресурсы writer.
func (n *KafkaNotifier) Close() error { return n.w.Close() }

// OrderPlaced пишет событие с номером заказа в качестве ключа.
func (n *KafkaNotifier) OrderPlaced(ctx context.Context, event OrderPlacedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderNo),
		Value: b,
	})
}
