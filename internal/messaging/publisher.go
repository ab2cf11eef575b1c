// Package messaging publishes kitchen events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/outlet-pos/api/internal/service"
	"github.com/rabbitmq/amqp091-go"
)

// KitchenExchange is the topic exchange kitchen events go to.
const KitchenExchange = "kitchen_topic"

const publishTimeout = 5 * time.Second

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url string) (channel, func() error, error)

// Publisher sends kitchen events to the topic exchange. The connection is
// opened on first use and reopened after it drops.
type Publisher struct {
	url  string
	dial dialFunc

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

// NewPublisher creates a publisher for the broker at url.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, dial: dial}
}

func dial(url string) (channel, func() error, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		KitchenExchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare %s exchange: %w", KitchenExchange, err)
	}
	return ch, conn.Close, nil
}

// RoutingKey builds kitchen.<order_type>.<event>, where event is the last
// segment of the event type.
func RoutingKey(ev service.KitchenEvent) string {
	name := ev.Type
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	orderType := string(ev.OrderType)
	if orderType == "" {
		orderType = "unknown"
	}
	return fmt.Sprintf("kitchen.%s.%s", orderType, name)
}

// Notify implements service.Notifier.
func (p *Publisher) Notify(ctx context.Context, ev service.KitchenEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		KitchenExchange, // exchange
		RoutingKey(ev),  // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.At,
			MessageId:    fmt.Sprintf("%s:%s:%d", ev.OrderID, ev.Type, ev.At.UnixNano()),
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) channel() (channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return nil, err
	}
	p.ch, p.closeConn = ch, closeConn
	return ch, nil
}

func (p *Publisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		p.closeConn()
		p.closeConn = nil
	}
}

// Close closes the broker connection.
func (p *Publisher) Close() error {
	p.reset()
	return nil
}
