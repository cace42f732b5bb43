// Package notify announces finished consolidation runs on an AMQP exchange.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"receivables/internal/logger"
)

// Publisher delivers run events.
type Publisher interface {
	Publish(ctx context.Context, event *RunEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, *RunEvent) error { return nil }
func (Nop) Close() error                             { return nil }

// AMQPPublisher publishes run events as persistent JSON messages on a durable topic exchange.
type AMQPPublisher struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	routingKey string
	log        zerolog.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange, routingKey string) (*AMQPPublisher, error) {
	const op = "NewAMQPPublisher"

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: dial AMQP: %w", op, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: open channel: %w", op, err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: declare exchange: %w", op, err)
	}

	return &AMQPPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
		log:        logger.WithComponent("notify"),
	}, nil
}

// Publish sends one event.
func (p *AMQPPublisher) Publish(ctx context.Context, event *RunEvent) error {
	const op = "Publish"

	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("%s: marshal event: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.RunID,
			Timestamp:    event.FinishedAt,
			Type:         "consolidation.run." + event.Status,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: publish message: %w", op, err)
	}

	p.log.Info().
		Str("run_id", event.RunID).
		Str("status", event.Status).
		Str("exchange", p.exchange).
		Str("routing_key", p.routingKey).
		Msg("Published run event")

	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
