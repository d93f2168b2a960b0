package kafka

import (
	"context"
	"encoding/json"

	"ecommerce-api/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes order events. Publishing happens after the checkout
// transaction commits and is best-effort.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &Producer{writer: w, topic: topic, logger: logger}
}

// PublishOrderCompleted publishes one order.completed event keyed by order id.
func (p *Producer) PublishOrderCompleted(ctx context.Context, evt models.OrderCompletedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish order event",
			zap.String("order_id", evt.OrderID),
			zap.String("topic", p.topic),
			zap.Error(err))
		return err
	}
	p.logger.Info("order event published",
		zap.String("order_id", evt.OrderID),
		zap.String("topic", p.topic))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
