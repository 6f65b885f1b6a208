package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/models"
)

// KafkaBus is the OrderEventBus for multi-node deployments: order intake
// nodes publish, execution nodes consume through a shared consumer group.
// Delivery is at least once; handlers must tolerate replays (settlement is
// guarded by the database transaction).
type KafkaBus struct {
	logger *zap.Logger
	writer *kafka.Writer
	reader *kafka.Reader

	mu       sync.RWMutex
	handlers []Handler

	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaBus creates a Kafka-backed bus and starts its consumer loop.
func NewKafkaBus(logger *zap.Logger, brokers []string, topic, groupID string) *KafkaBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &KafkaBus{
		logger: logger,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.consume(ctx)
	return b
}

// Publish writes the event, keyed by order id so retries of the same order
// land on the same partition.
func (b *KafkaBus) Publish(ctx context.Context, event models.OrderCreated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}

// Subscribe registers a handler for subsequent events.
func (b *KafkaBus) Subscribe(handler Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

func (b *KafkaBus) consume(ctx context.Context) {
	defer close(b.done)
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to read order event", zap.Error(err))
			continue
		}

		var event models.OrderCreated
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			b.logger.Error("invalid order event payload", zap.Error(err))
			continue
		}

		b.mu.RLock()
		handlers := b.handlers
		b.mu.RUnlock()
		for _, h := range handlers {
			if err := h(ctx, event); err != nil {
				b.logger.Error("order event handler failed",
					zap.String("order_id", event.OrderID.String()),
					zap.Error(err))
			}
		}
	}
}

// Close stops the consumer loop and closes the underlying writer/reader.
func (b *KafkaBus) Close() error {
	b.cancel()
	<-b.done
	if err := b.reader.Close(); err != nil {
		return err
	}
	return b.writer.Close()
}
