package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"viewly/internal/models"
)

// RoutingKeyPrefix namespaces every published event on the exchange.
const RoutingKeyPrefix = "viewing."

// Publisher is the subset of *amqp.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes rendered events to a RabbitMQ topic exchange.
type AMQPNotifier struct {
	publisher Publisher
	exchange  string
	closers   []func() error
}

// NewAMQPNotifier wraps an existing publisher. The exchange must already exist.
func NewAMQPNotifier(publisher Publisher, exchange string) (*AMQPNotifier, error) {
	if publisher == nil {
		return nil, errors.New("amqp notifier: publisher cannot be nil")
	}
	return &AMQPNotifier{publisher: publisher, exchange: exchange}, nil
}

// DialAMQPNotifier connects to the broker and declares a durable topic exchange.
func DialAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp notifier: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp notifier: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp notifier: declare exchange %q: %w", exchange, err)
	}

	n, err := NewAMQPNotifier(ch, exchange)
	if err != nil {
		return nil, err
	}
	n.closers = []func() error{ch.Close, conn.Close}
	return n, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, event models.NotificationEvent) error {
	body, err := json.Marshal(Render(event))
	if err != nil {
		return fmt.Errorf("amqp notifier: marshal %s: %w", event.Type, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    event.ViewingRequestID + ":" + string(event.Type) + ":" + event.RecipientID,
		Type:         string(event.Type),
		Body:         body,
		Headers: amqp.Table{
			"recipient_id":       event.RecipientID,
			"viewing_request_id": event.ViewingRequestID,
		},
	}

	key := RoutingKeyPrefix + string(event.Type)
	if err := n.publisher.PublishWithContext(ctx, n.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("amqp notifier: publish %s: %w", key, err)
	}
	return nil
}

// Close releases the channel and connection opened by DialAMQPNotifier.
func (n *AMQPNotifier) Close() error {
	var firstErr error
	for _, c := range n.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.closers = nil
	return firstErr
}
