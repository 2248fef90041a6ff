package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"carhire/pkg/logger"
)

// RabbitPublisher publishes to a durable topic exchange with the event type as the
// routing key, and redials when the broker drops the connection.
type RabbitPublisher struct {
	url      string
	exchange string
	log      *logger.Logger

	mu        sync.RWMutex
	conn      *amqp091.Connection
	ch        *amqp091.Channel
	connClose chan *amqp091.Error
	isClosed  atomic.Bool
}

func NewRabbitPublisher(url, exchange string, log *logger.Logger) (*RabbitPublisher, error) {
	r := &RabbitPublisher{url: url, exchange: exchange, log: log}
	if err := r.connect(); err != nil {
		return nil, err
	}
	go r.reconnect()
	return r, nil
}

func (r *RabbitPublisher) connect() error {
	conn, err := amqp091.Dial(r.url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}
	err = ch.ExchangeDeclare(
		r.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	closed := make(chan *amqp091.Error, 1)
	conn.NotifyClose(closed)

	r.mu.Lock()
	r.conn, r.ch, r.connClose = conn, ch, closed
	r.mu.Unlock()
	return nil
}

func (r *RabbitPublisher) reconnect() {
	for {
		r.mu.RLock()
		closed := r.connClose
		r.mu.RUnlock()

		<-closed
		if r.isClosed.Load() {
			return
		}
		r.log.Warn("rabbitmq connection lost")
		for !r.isClosed.Load() {
			if err := r.connect(); err != nil {
				time.Sleep(3 * time.Second)
				continue
			}
			r.log.Info("reconnected to rabbitmq")
			break
		}
	}
}

func (r *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.RLock()
	ch := r.ch
	r.mu.RUnlock()

	err = ch.PublishWithContext(ctx,
		r.exchange,
		event.Type,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (r *RabbitPublisher) Close() error {
	r.isClosed.Store(true)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn.Close()
}
