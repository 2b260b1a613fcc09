package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client is the AMQP-backed change feed. Events are published to a topic
// exchange with routing key "<table>.<couple_id>", so a subscriber binds one
// private queue per table it watches, filtered to its own couple.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
}

func NewClient(url, exchangeName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return client, nil
}

// Publish sends one change event. Callers treat failures as log-only: a lost
// event degrades liveness of remote mirrors, never the write itself.
func (c *Client) Publish(ctx context.Context, e Event) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		e.Table+"."+e.CoupleID, // routing key
		false,                  // mandatory
		false,                  // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    e.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "Published change event",
		"table", e.Table,
		"type", e.Type,
		"couple_id", e.CoupleID)

	return nil
}

// Subscribe delivers change events for the given tables and couple until ctx
// is cancelled. The returned stop function tears the private queue down; it
// is safe to call more than once.
func (c *Client) Subscribe(ctx context.Context, coupleID string, tables []string) (<-chan Event, func(), error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open subscriber channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declare subscriber queue: %w", err)
	}

	for _, table := range tables {
		if err := ch.QueueBind(q.Name, table+"."+coupleID, c.exchangeName, false, nil); err != nil {
			ch.Close()
			return nil, nil, fmt.Errorf("bind queue for %s: %w", table, err)
		}
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		true,  // auto-ack: change events carry no redelivery value
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("start consuming: %w", err)
	}

	out := make(chan Event)
	stopped := make(chan struct{})
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { close(stopped) })
	}

	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				e, err := EventFromJSON(d.Body)
				if err != nil {
					slog.ErrorContext(ctx, "Failed to unmarshal change event", "error", err)
					continue
				}
				select {
				case out <- *e:
				case <-ctx.Done():
					return
				case <-stopped:
					return
				}
			}
		}
	}()

	slog.InfoContext(ctx, "Subscribed to change feed",
		"couple_id", coupleID,
		"tables", tables,
		"queue", q.Name)

	return out, stop, nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
