package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP publishes notification JSON to a queue, so external systems can
// consume the alert stream. The connection is established lazily on first
// send and re-established after errors.
type AMQP struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQP(url, queue string) *AMQP {
	return &AMQP{url: url, queue: queue}
}

func (d *AMQP) Type() string { return "amqp" }

// Send publishes to the configured queue. The address field selects a
// routing key override; empty means the configured queue.
func (d *AMQP) Send(ctx context.Context, address string, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ch, err := d.channel()
	if err != nil {
		return err
	}
	routingKey := d.queue
	if address != "" {
		routingKey = address
	}
	err = ch.PublishWithContext(ctx,
		"",         // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		d.reset()
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}
	return nil
}

// Close shuts the connection down. Safe to call without a live connection.
func (d *AMQP) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	return nil
}

// channel returns a live channel, dialing if needed. Caller holds d.mu.
func (d *AMQP) channel() (*amqp.Channel, error) {
	if d.ch != nil && !d.conn.IsClosed() {
		return d.ch, nil
	}
	d.reset()

	conn, err := amqp.Dial(d.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		d.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", d.queue, err)
	}
	d.conn, d.ch = conn, ch
	return ch, nil
}

// reset drops the connection state. Caller holds d.mu.
func (d *AMQP) reset() {
	if d.ch != nil {
		d.ch.Close()
		d.ch = nil
	}
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}
