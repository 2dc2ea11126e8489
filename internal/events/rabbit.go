// internal/events/rabbit.go
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"

	"clinica-cloud/internal/model"
)

// Exchange carries tenant lifecycle events. Fanout: every console instance
// sees every event, which is what push-based cache invalidation needs.
const Exchange = "tenant.events"

const (
	TypeProvisioned   = "provisioned"
	TypeStatusChanged = "status_changed"
)

// Event is the wire payload on the tenant events exchange.
type Event struct {
	Type      string       `json:"type"`
	Subdomain string       `json:"subdomain"`
	Status    model.Status `json:"status,omitempty"`
	At        time.Time    `json:"at"`
}

// Client wraps the broker connection and publishes tenant events.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	URL     string
}

func NewClient(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		Exchange,
		"fanout",
		true,  // durable
		false, // autoDelete
		false, false, nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Client{conn: conn, channel: ch, URL: url}, nil
}

func (c *Client) GetConnection() *amqp.Connection {
	return c.conn
}

func (c *Client) publish(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = c.channel.Publish(
		Exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   ev.At,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// PublishStatusChange announces an administrative status flip. Consumers
// invalidate their cached handles for the tenant.
func (c *Client) PublishStatusChange(subdomain string, status model.Status) error {
	return c.publish(Event{
		Type:      TypeStatusChanged,
		Subdomain: subdomain,
		Status:    status,
		At:        time.Now(),
	})
}

// TenantProvisioned implements the provisioning path's event sink.
// Publication is best-effort; a broker hiccup must not fail provisioning.
func (c *Client) TenantProvisioned(rec *model.TenantRecord) {
	err := c.publish(Event{
		Type:      TypeProvisioned,
		Subdomain: rec.Subdomain,
		Status:    rec.Status,
		At:        time.Now(),
	})
	if err != nil {
		log.Printf("[Events] Failed to publish provisioned event for %s: %v", rec.Subdomain, err)
	}
}

// Close cleans up connection and channel
func (c *Client) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
