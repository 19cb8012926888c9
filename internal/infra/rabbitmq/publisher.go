package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"echo-trivia/internal/app"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue receives session-completed events.
const DefaultQueue = "trivia.session.completed"

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements app.EventPublisher on a durable queue.
type Publisher struct {
	conn  *amqp.Connection
	queue string
	now   func() time.Time

	mu sync.Mutex // amqp channels are not safe for concurrent publishing
	ch channel
}

// Dial connects to url and declares the queue once.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p, err := newPublisher(ch, queue)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &Publisher{ch: ch, queue: queue, now: time.Now}, nil
}

func (p *Publisher) PublishSessionCompleted(ctx context.Context, ev app.SessionCompleted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.SessionID,
			Type:         "session.completed",
			Body:         body,
			Timestamp:    p.now(),
		},
	)
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
