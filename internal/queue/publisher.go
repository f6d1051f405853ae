package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ramtunguturi36/cvb/internal/model"
)

// Publisher forwards outbox messages to RabbitMQ.  A connection is opened
// per call; the outbox relay batches work so this stays cheap.
type Publisher struct {
	URL        string
	Logger     *slog.Logger
	RetryDelay time.Duration
}

func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{URL: url, Logger: logger}
}

// queueFor maps an outbox kind to its routing key.
func queueFor(kind string) (string, error) {
	switch kind {
	case model.OutboxKindAccessIssued:
		return AccessIssuedQueue, nil
	}
	return "", fmt.Errorf("queue: no route for outbox kind %q", kind)
}

// Dispatch publishes m as a persistent JSON message on the queue matching
// its kind and waits for the broker to confirm it.  The outbox message id
// becomes the AMQP message id so consumers can discard redeliveries.
func (p *Publisher) Dispatch(ctx context.Context, m model.OutboxMessage) error {
	name, err := queueFor(m.Kind)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareTopology(ch, p.RetryDelay); err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq confirm mode: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.MessageID,
		Type:         m.Kind,
		Timestamp:    time.Now().UTC(),
		Body:         m.Payload,
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", name, false, false, pub)
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked message %s", m.MessageID)
	}
	p.Logger.Debug("outbox message published", "queue", name, "message_id", m.MessageID)
	return nil
}
