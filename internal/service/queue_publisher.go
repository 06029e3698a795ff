package service

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/jo-ticketing/internal/queue"
)

// Publisher sends domain events to RabbitMQ.  Each publish opens its own
// short-lived connection; the dial timeout is kept short because callers
// treat publishing as best effort and must not stall a checkout on a dead
// broker.
type Publisher struct {
    url         string
    dialTimeout time.Duration
    logger      *slog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
    return &Publisher{url: url, dialTimeout: 2 * time.Second, logger: logger}
}

// PublishTicketIssued publishes to tickets.issued.
func (p *Publisher) PublishTicketIssued(ctx context.Context, event q.TicketIssuedEvent) error {
    return p.publish(ctx, q.TicketsIssuedQueue, event)
}

// PublishOfferChanged publishes to offers.changed.
func (p *Publisher) PublishOfferChanged(ctx context.Context, event q.OfferChangedEvent) error {
    return p.publish(ctx, q.OffersChangedQueue, event)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("rabbitmq: marshal event: %w", err)
    }
    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
    if err != nil {
        return fmt.Errorf("rabbitmq: dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq: channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // idempotent; durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("rabbitmq: queue declare: %w", err)
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
        return fmt.Errorf("rabbitmq: publish: %w", err)
    }
    p.logger.Debug("event published", "queue", queueName, "bytes", len(body))
    return nil
}
