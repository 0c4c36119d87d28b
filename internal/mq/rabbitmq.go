package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/postboard/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeKind   = amqp.ExchangeTopic
	bindAllEvents  = "#"
	durableSuffix  = ".subscriber"
	defaultRouting = "event"
)

// RabbitMQClient maps every channel onto a topic exchange of the same name.
// Events are routed by type, so "post.*" style bindings select a subset.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	durable bool

	// autoDelete applies to the exchanges; durable subscriber queues never
	// auto-delete.
	autoDelete bool

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:       conn,
		channel:    ch,
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
		declared:   make(map[string]bool),
	}, nil
}

// Publish routes data to the channel's exchange using the event type as the
// routing key. The exchange is declared once per client.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := r.ensureExchange(channel); err != nil {
		return "", err
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	routingKey := attrs[attrEvent]
	if routingKey == "" {
		routingKey = defaultRouting
	}
	mode := amqp.Transient
	if r.durable {
		mode = amqp.Persistent
	}

	id := newMessageID()
	err := r.channel.PublishWithContext(ctx, channel, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Timestamp:    time.Now().UTC(),
		Type:         attrs[attrEvent],
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe binds a queue to every event on the channel and hands deliveries
// to handler until ctx is done. With durable queues all subscribers share
// "<channel>.subscriber"; otherwise each subscriber gets its own exclusive
// queue and sees every event. A handler error requeues the delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.ensureExchange(channel); err != nil {
		return err
	}
	queue, err := r.bindQueue(channel)
	if err != nil {
		return err
	}

	tag := "postboard-" + newMessageID()
	deliveries, err := r.channel.Consume(queue, tag, false, !r.durable, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	defer func() { _ = r.channel.Cancel(tag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{ID: d.MessageId, Data: d.Body, Attributes: headersToAttributes(d.Headers)}
			if err := handler(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) ensureExchange(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("rabbitmq channel is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}
	if err := r.channel.ExchangeDeclare(name, exchangeKind, true, r.autoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func (r *RabbitMQClient) bindQueue(channel string) (string, error) {
	var (
		q   amqp.Queue
		err error
	)
	if r.durable {
		q, err = r.channel.QueueDeclare(channel+durableSuffix, true, false, false, false, nil)
	} else {
		q, err = r.channel.QueueDeclare("", false, true, true, false, nil)
	}
	if err != nil {
		return "", fmt.Errorf("declare queue for %s: %w", channel, err)
	}
	if err := r.channel.QueueBind(q.Name, bindAllEvents, channel, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return q.Name, nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
