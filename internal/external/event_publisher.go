package external

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"settlement-api/internal/engine"
)

const (
	settlementExchange = "settlement.events"
	publishTimeout     = 5 * time.Second
)

// RabbitMQPublisher emits settlement events onto a topic exchange. Routing
// keys are settlement.<type>.<status> so consumers can bind to the slice they
// care about.
type RabbitMQPublisher struct {
	url     string
	logger  *logrus.Logger
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQPublisher(url string, logger *logrus.Logger) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{
		url:    url,
		logger: logger,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		settlementExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return nil
}

// PublishSettlement sends one event, reconnecting once on a closed channel.
func (p *RabbitMQPublisher) PublishSettlement(ctx context.Context, event *engine.SettlementEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement event: %w", err)
	}

	routingKey := fmt.Sprintf("settlement.%s.%s", event.Type, event.Status)

	p.mu.Lock()
	defer p.mu.Unlock()

	publish := func() error {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		return p.channel.PublishWithContext(ctx, settlementExchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
	}

	if err := publish(); err != nil {
		p.logger.WithError(err).Warn("Settlement event publish failed, reconnecting")
		if err := p.reconnect(); err != nil {
			return err
		}
		if err := publish(); err != nil {
			return fmt.Errorf("failed to publish settlement event: %w", err)
		}
	}

	return nil
}

func (p *RabbitMQPublisher) reconnect() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return p.connect()
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
