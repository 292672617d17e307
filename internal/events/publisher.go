// Package events publishes wallet ledger events for the rest of the storefront
// (order fulfilment, notifications) to consume.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Exchange is the durable topic exchange wallet events go to
const Exchange = "wallet.events"

// Routing keys
const (
	DepositSucceeded = "wallet.deposit.succeeded"
	DepositFailed    = "wallet.deposit.failed"
	PaymentCompleted = "wallet.payment.completed"
)

// WalletEvent is the payload of every wallet event
type WalletEvent struct {
	Type       string    `json:"type"`
	Reference  string    `json:"reference"`
	UserID     uint      `json:"user_id"`
	WalletID   uint      `json:"wallet_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is implemented by types that can publish wallet events
type Publisher interface {
	Publish(ctx context.Context, event WalletEvent) error
	Close()
}

// NoopPublisher drops events; used when no broker is configured or reachable
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event WalletEvent) error {
	logrus.WithFields(logrus.Fields{"type": event.Type, "reference": event.Reference}).Debug("event publish skipped")
	return nil
}

func (NoopPublisher) Close() {}

// RabbitPublisher publishes persistent JSON messages to the wallet exchange
type RabbitPublisher struct {
	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitPublisher dials the broker and declares the exchange
func NewRabbitPublisher(url string) (*RabbitPublisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is empty")
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch}, nil
}

// Publish sends event with its type as routing key
func (p *RabbitPublisher) Publish(ctx context.Context, event WalletEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return err
		}
		p.channel = ch
	}
	return p.channel.PublishWithContext(ctx, Exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.Reference,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

// Close releases the channel and connection
func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Connect returns a RabbitMQ publisher, or the no-op publisher when url is empty or the broker is down
func Connect(url string) Publisher {
	if url == "" {
		logrus.Info("RABBITMQ_URL not set, wallet events disabled")
		return NoopPublisher{}
	}
	p, err := NewRabbitPublisher(url)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq unavailable, wallet events disabled")
		return NoopPublisher{}
	}
	return p
}
