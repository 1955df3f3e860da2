package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue notices are published to when none is configured.
const DefaultQueue = "fishsync.notifications"

// DefaultDialTimeout bounds connecting to the broker when none is configured.
const DefaultDialTimeout = 3 * time.Second

// AMQP publishes notices as persistent JSON messages to a durable queue.
//
// Each Notify dials, declares the queue and publishes, so a broker restart
// never leaves a stale connection behind. Notices are rare enough that the
// per-message connection cost does not matter.
type AMQP struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
}

// NewAMQP returns a publisher for the given broker URL and queue.
// A non-positive dialTimeout means DefaultDialTimeout.
func NewAMQP(url, queue string, dialTimeout time.Duration) *AMQP {
	if queue == "" {
		queue = DefaultQueue
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &AMQP{URL: url, Queue: queue, DialTimeout: dialTimeout}
}

// dialTimeout is DialTimeout, shortened to what is left of ctx's deadline.
func (a *AMQP) dialTimeout(ctx context.Context) time.Duration {
	timeout := a.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = max(left, time.Millisecond)
		}
	}
	return timeout
}

// Notify publishes n.
func (a *AMQP) Notify(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	conn, err := amqp.DialConfig(a.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(a.dialTimeout(ctx)),
	})
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		a.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("amqp marshal notice: %w", err)
	}

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at.UTC(),
		Type:         n.Code,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		a.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}
