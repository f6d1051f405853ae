package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AccessIssuedHandler processes one decoded event.  Returning an error
// sends the delivery through the retry queue.
type AccessIssuedHandler func(ctx context.Context, ev AccessIssuedEvent) error

// DefaultMaxAttempts bounds deliveries of one message before it is parked.
const DefaultMaxAttempts = 5

var errMalformed = errors.New("malformed event")

type disposition int

const (
	dispAck disposition = iota
	dispRetry
	dispPark
)

// Consumer reads access.issued and hands each event to Handle.
type Consumer struct {
	URL         string
	Logger      *slog.Logger
	Handle      AccessIssuedHandler
	Dedupe      Deduper
	RetryDelay  time.Duration
	MaxAttempts int
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warn("access consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warn("access consumer: loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.Logger.Warn("access consumer: set QoS failed", "error", err)
	}
	if err := declareTopology(ch, c.RetryDelay); err != nil {
		return err
	}
	msgs, err := ch.Consume(AccessIssuedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			disp, err := c.process(ctx, d.MessageId, d.Body, d.Headers)
			switch disp {
			case dispAck:
				_ = d.Ack(false)
			case dispRetry:
				c.Logger.Warn("access consumer: delivery failed, retrying", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, false)
			case dispPark:
				c.Logger.Error("access consumer: parking message", "message_id", d.MessageId, "error", err)
				if perr := c.park(ctx, ch, d); perr != nil {
					c.Logger.Error("access consumer: park failed", "message_id", d.MessageId, "error", perr)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}
}

// process decides what happens to one delivery.  Malformed bodies and
// messages that exhausted their attempts are parked; handler failures are
// retried; ids already handled are acknowledged without calling Handle.
func (c *Consumer) process(ctx context.Context, id string, body []byte, headers amqp.Table) (disposition, error) {
	ev, err := decodeEvent(body)
	if err != nil {
		return dispPark, err
	}
	if id != "" && c.Dedupe != nil {
		seen, err := c.Dedupe.Seen(ctx, id)
		if err != nil {
			c.Logger.Warn("access consumer: dedupe lookup failed", "message_id", id, "error", err)
		} else if seen {
			c.Logger.Info("access consumer: duplicate delivery skipped", "message_id", id)
			return dispAck, nil
		}
	}
	if err := c.Handle(ctx, ev); err != nil {
		limit := c.MaxAttempts
		if limit <= 0 {
			limit = DefaultMaxAttempts
		}
		if rejections(headers, AccessIssuedQueue)+1 >= int64(limit) {
			return dispPark, fmt.Errorf("giving up after %d attempts: %w", limit, err)
		}
		return dispRetry, err
	}
	if id != "" && c.Dedupe != nil {
		if err := c.Dedupe.Mark(ctx, id); err != nil {
			c.Logger.Warn("access consumer: dedupe mark failed", "message_id", id, "error", err)
		}
	}
	return dispAck, nil
}

func (c *Consumer) park(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) error {
	return ch.PublishWithContext(ctx, "", AccessIssuedDeadQueue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Timestamp:    time.Now().UTC(),
		Headers:      d.Headers,
		Body:         d.Body,
	})
}

func decodeEvent(body []byte) (AccessIssuedEvent, error) {
	var ev AccessIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.Email == "" || ev.Token == "" {
		return ev, fmt.Errorf("%w: missing email or token", errMalformed)
	}
	return ev, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
