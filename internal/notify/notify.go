// Package notify announces rebuild results on a RabbitMQ exchange.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends an event with a JSON payload
type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
	Close() error
}

// publishTimeout bounds a single publish
const publishTimeout = 10 * time.Second

// AMQPPublisher publishes events to a topic exchange, using the event name as routing key
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// Dial connects and declares the exchange. An empty URL returns a no-op publisher.
func Dial(url, exchange string) (Publisher, error) {
	if url == "" {
		return Noop{}, nil
	}
	if exchange == "" {
		return nil, fmt.Errorf("notify: exchange name cannot be empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to declare exchange '%s': %w", exchange, err)
	}

	logger := slog.Default().With("component", "notify", "exchange", exchange)
	logger.Info("Connected to RabbitMQ")
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// newMessage builds the persistent JSON message for an event
func newMessage(event string, payload interface{}) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         event,
	}, nil
}

// Publish implements Publisher
func (p *AMQPPublisher) Publish(ctx context.Context, event string, payload interface{}) error {
	if p.conn.IsClosed() {
		return fmt.Errorf("notify: connection is closed")
	}

	msg, err := newMessage(event, payload)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.channel.PublishWithContext(publishCtx, p.exchange, event, false, false, msg); err != nil {
		return fmt.Errorf("notify: failed to publish %s: %w", event, err)
	}

	p.logger.Debug("Published event", "event", event, "bytes", len(msg.Body))
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	var firstErr error
	if err := p.channel.Close(); err != nil {
		firstErr = err
	}
	if err := p.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Noop drops every event
type Noop struct{}

func (Noop) Publish(ctx context.Context, event string, payload interface{}) error { return nil }
func (Noop) Close() error { return nil }
