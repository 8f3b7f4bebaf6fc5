package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/services"
)

// ActivityHandler turns an inbound activity into a notification.
type ActivityHandler interface {
	HandleActivity(ctx context.Context, event models.ActivityEvent) error
}

// ActivityRoutingKeys are bound to the activity queue.
var ActivityRoutingKeys = []string{"activity.like", "activity.comment", "activity.follow", "activity.mention"}

// Consumer reads activity events from a durable queue.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	handler ActivityHandler
	log     *zap.Logger
}

// NewConsumer declares the queue, binds it to exchange and returns a consumer
// ready to Run.
func NewConsumer(amqpURL, exchange, queue string, handler ActivityHandler, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range ActivityRoutingKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("bind queue %s: %w", key, err)
		}
	}
	if err := ch.Qos(32, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, handler: handler, log: log.Named("activity")}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("activity consumer started", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("activity deliveries channel closed")
			}
			handleDelivery(ctx, c.handler, d, c.log)
		}
	}
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// handleDelivery acks processed and suppressed events, drops malformed or
// invalid ones and requeues when storage is unavailable.
func handleDelivery(ctx context.Context, handler ActivityHandler, d amqp.Delivery, log *zap.Logger) string {
	var event models.ActivityEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Warn("malformed activity event", zap.Error(err))
		return settle(d, "malformed", d.Nack(false, false), log)
	}

	err := handler.HandleActivity(ctx, event)
	switch {
	case err == nil:
		return settle(d, "ok", d.Ack(false), log)
	case errors.Is(err, services.ErrPersistence):
		log.Warn("activity requeued", zap.String("type", string(event.Type)), zap.Error(err))
		return settle(d, "requeued", d.Nack(false, true), log)
	default:
		log.Warn("activity rejected", zap.String("type", string(event.Type)), zap.Error(err))
		return settle(d, "rejected", d.Nack(false, false), log)
	}
}

func settle(d amqp.Delivery, result string, ackErr error, log *zap.Logger) string {
	if ackErr != nil {
		log.Warn("activity ack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(ackErr))
	}
	observability.IncActivityConsumed(result)
	return result
}
