// Package messaging announces domain changes on a RabbitMQ topic exchange.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeName = "rondpoint.events"

type Topic string

const (
	TopicEventCreated   Topic = "event.created"
	TopicEventApproved  Topic = "event.approved"
	TopicEventRejected  Topic = "event.rejected"
	TopicEventDeleted   Topic = "event.deleted"
	TopicPremiumGranted Topic = "user.premium_activated"
)

// Envelope is the body of every published message.
type Envelope struct {
	EventID       string      `json:"event_id"`
	CorrelationID string      `json:"correlation_id"`
	EventType     Topic       `json:"event_type"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// Notifier is what the services publish through.
type Notifier interface {
	Publish(ctx context.Context, topic Topic, correlationID string, data interface{}) error
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	channel  channel
	exchange string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher declares the durable topic exchange on ch.
func NewPublisher(ch channel, logger *slog.Logger) (*Publisher, error) {
	err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	return &Publisher{
		channel:  ch,
		exchange: ExchangeName,
		timeout:  10 * time.Second,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic Topic, correlationID string, data interface{}) error {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		EventType:     topic,
		Timestamp:     p.now().UTC(),
		Data:          data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Debug("publishing message", "routing_key", topic, "correlation_id", correlationID)
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		string(topic),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			MessageId:     env.EventID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     env.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// Nop drops every message. It stands in when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Topic, string, interface{}) error { return nil }
