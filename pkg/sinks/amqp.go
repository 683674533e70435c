package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel defines the minimal subset of the AMQP channel used by amqpSink.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// amqpSink implements the Sink interface for RabbitMQ. With an exchange
// configured it declares a durable topic exchange; without one it publishes
// through the default exchange straight to the routing-key queue. The
// connection is dialed on first delivery.
type amqpSink struct {
	id         string
	typ        string
	url        string
	exchange   string
	routingKey string
	log        Logger

	mu      sync.Mutex
	ch      amqpChannel
	connect func(url string) (amqpChannel, error)
}

// newAMQPSink creates a RabbitMQ sink with the given configuration.
func newAMQPSink(_ context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	if cfg.AMQP == nil {
		return nil, fmt.Errorf("sink %q missing amqp configuration", cfg.ID)
	}

	return &amqpSink{
		id:         cfg.ID,
		typ:        TypeAMQP,
		url:        cfg.AMQP.URL,
		exchange:   cfg.AMQP.Exchange,
		routingKey: cfg.AMQP.RoutingKey,
		log:        ensureLogger(log),
		connect:    dialAMQP,
	}, nil
}

func dialAMQP(url string) (amqpChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

func (a *amqpSink) ID() string   { return a.id }
func (a *amqpSink) Type() string { return a.typ }

// Deliver publishes the event to RabbitMQ.
func (a *amqpSink) Deliver(ctx context.Context, evt Event) error {
	ch, err := a.channel()
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		a.exchange,
		a.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		a.log.ErrorObj("amqp sink publish failed", "sink_amqp_error", map[string]any{
			"sink_id": a.id,
			"error":   err.Error(),
		})
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}
	a.log.DebugObj("amqp sink delivered event", "sink_amqp_delivery", map[string]any{
		"sink_id": a.id,
	})
	return nil
}

func (a *amqpSink) channel() (amqpChannel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ch != nil {
		return a.ch, nil
	}

	ch, err := a.connect(a.url)
	if err != nil {
		return nil, err
	}
	if a.exchange != "" {
		if err := ch.ExchangeDeclare(a.exchange, "topic", true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare exchange %s: %w", a.exchange, err)
		}
	} else {
		if _, err := ch.QueueDeclare(a.routingKey, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", a.routingKey, err)
		}
	}
	a.ch = ch
	return ch, nil
}
