package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

// RoutingKeyAnalysisCompleted is used for every analysis.completed event.
const RoutingKeyAnalysisCompleted = "analysis.completed"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes analysis events to a RabbitMQ topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher connects to RabbitMQ, retrying for a short while, and declares the exchange.
func NewPublisher(ctx context.Context, url, exchange string, logger *zap.Logger) (*Publisher, error) {
	logger = logger.Named("publisher")

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("failed to connect to rabbitmq", zap.Error(err), zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// PublishAnalysisCompleted sends a persistent JSON message for a finished analysis.
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event usecase.AnalysisCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKeyAnalysisCompleted,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.RequestID,
			Timestamp:    event.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyAnalysisCompleted, err)
	}
	p.logger.Debug("event published", zap.String("request_id", event.RequestID))
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
