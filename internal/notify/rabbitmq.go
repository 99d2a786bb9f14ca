package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// channel is the part of *amqp.Channel the notifier uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQNotifier publishes event.created messages to a durable topic
// exchange and reconnects when the broker connection drops.
type RabbitMQNotifier struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel channel
	closed  chan struct{}
	once    sync.Once
}

// NewRabbitMQNotifier dials the broker and declares the exchange.
func NewRabbitMQNotifier(url, exchange string, logger *slog.Logger) (*RabbitMQNotifier, error) {
	n := &RabbitMQNotifier{
		url:      url,
		exchange: exchange,
		logger:   logger,
		closed:   make(chan struct{}),
	}

	conn, ch, err := n.dial()
	if err != nil {
		return nil, err
	}
	n.conn = conn
	n.channel = ch

	go n.handleReconnect(conn)

	logger.Info("rabbitmq notifier initialized", "exchange", exchange)
	return n, nil
}

func (n *RabbitMQNotifier) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		n.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// NotifyEventCreated publishes one persistent JSON message for event.
func (n *RabbitMQNotifier) NotifyEventCreated(ctx context.Context, event models.Event) error {
	return n.publish(ctx, RoutingKeyEventCreated, NewEventCreated(event))
}

func (n *RabbitMQNotifier) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	n.mu.RLock()
	ch := n.channel
	n.mu.RUnlock()
	if ch == nil {
		return errors.New("rabbitmq channel unavailable")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	now := time.Now()
	err = ch.PublishWithContext(ctx,
		n.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    now,
			MessageId:    fmt.Sprintf("%d", now.UnixNano()),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	n.logger.Debug("message published",
		"routing_key", routingKey,
		"exchange", n.exchange,
		"body_size", len(body))
	return nil
}

// handleReconnect redials after the connection closes until Close is called.
func (n *RabbitMQNotifier) handleReconnect(conn *amqp.Connection) {
	for {
		closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-n.closed:
			return
		case closeErr, ok := <-closeChan:
			if !ok || closeErr == nil {
				return
			}
			n.logger.Error("rabbitmq connection closed, reconnecting", "error", closeErr)
		}

		n.mu.Lock()
		n.channel = nil
		n.mu.Unlock()

		for {
			select {
			case <-n.closed:
				return
			case <-time.After(5 * time.Second):
			}

			newConn, ch, err := n.dial()
			if err != nil {
				n.logger.Error("failed to reconnect to rabbitmq", "error", err)
				continue
			}

			n.mu.Lock()
			n.conn = newConn
			n.channel = ch
			n.mu.Unlock()
			conn = newConn

			n.logger.Info("reconnected to rabbitmq")
			break
		}
	}
}

// HealthCheck verifies the broker connection.
func (n *RabbitMQNotifier) HealthCheck() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.conn == nil || n.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	if n.channel == nil {
		return errors.New("rabbitmq channel is nil")
	}
	return nil
}

// Close stops reconnecting and closes the channel and connection.
func (n *RabbitMQNotifier) Close() error {
	n.once.Do(func() { close(n.closed) })

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			n.logger.Warn("failed to close rabbitmq channel", "error", err)
		}
		n.channel = nil
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}
