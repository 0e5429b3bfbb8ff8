package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends OrderCompletedEvents to RabbitMQ.  Each publish opens
// its own connection.  Errors are logged and returned so callers can ignore them without
// interrupting the request.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger

	// DialTimeout caps the TCP dial and the AMQP handshake.  A shorter
	// context deadline wins.
	DialTimeout time.Duration
}

// DefaultDialTimeout bounds a publish against a broker that accepts the
// connection but never answers.
const DefaultDialTimeout = 5 * time.Second

// NewPublisher returns a publisher for the given broker URL and queue.
func NewPublisher(url, queueName string, log *zap.Logger) *Publisher {
	if queueName == "" {
		queueName = OrderCompletedQueue
	}
	return &Publisher{url: url, queue: queueName, log: log, DialTimeout: DefaultDialTimeout}
}

// dial opens a connection whose dial and handshake deadline is the earlier
// of DialTimeout and ctx's deadline.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
	}
	return amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(timeout),
	})
}

// PublishOrderCompleted publishes ev as a persistent JSON message on the
// default exchange, routed to the order queue.
func (p *Publisher) PublishOrderCompleted(ctx context.Context, ev OrderCompletedEvent) error {
	conn, err := p.dial(ctx)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.PaymentRef,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.Error(err), zap.String("order_id", ev.OrderID))
		return err
	}
	return nil
}

// NopPublisher drops events.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCompleted(context.Context, OrderCompletedEvent) error { return nil }
