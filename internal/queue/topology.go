package queue

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queues next to AccessIssuedQueue.  Rejected deliveries are dead-lettered to
// the retry queue, wait there for the retry delay and flow back to the main
// queue.  Messages that cannot be processed are parked in the dead queue.
const (
	AccessIssuedRetryQueue = AccessIssuedQueue + ".retry"
	AccessIssuedDeadQueue  = AccessIssuedQueue + ".dead"
)

// DefaultRetryDelay is how long a failed delivery waits before redelivery.
const DefaultRetryDelay = 30 * time.Second

// declareTopology declares the main, retry and dead queues.  Publisher and
// consumer both call it so that whichever starts first creates them with the
// same arguments.
func declareTopology(ch *amqp.Channel, retryDelay time.Duration) error {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if _, err := ch.QueueDeclare(AccessIssuedQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": AccessIssuedRetryQueue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", AccessIssuedQueue, err)
	}
	if _, err := ch.QueueDeclare(AccessIssuedRetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             retryDelay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": AccessIssuedQueue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", AccessIssuedRetryQueue, err)
	}
	if _, err := ch.QueueDeclare(AccessIssuedDeadQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", AccessIssuedDeadQueue, err)
	}
	return nil
}

// rejections counts how often a delivery has been dead-lettered out of
// queue, read from the x-death header the broker maintains.
func rejections(headers amqp.Table, queue string) int64 {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	var n int64
	for _, d := range deaths {
		t, ok := d.(amqp.Table)
		if !ok || t["queue"] != queue {
			continue
		}
		switch c := t["count"].(type) {
		case int64:
			n += c
		case int32:
			n += int64(c)
		case int:
			n += int64(c)
		}
	}
	return n
}
